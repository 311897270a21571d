package service

import (
	"errors"
	"fmt"
)

// 业务层通用错误，handler 根据错误类型映射到 HTTP 状态码。
var (
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrDeliveryFailure  = errors.New("delivery failure")

	ErrInvalidBatchSize = fmt.Errorf("%w: publish batch must contain exactly %d prompts", ErrInvalidRequest, BatchSize)
	ErrPromptNotFound   = fmt.Errorf("%w: prompt not found", ErrInvalidRequest)
)
