package packaging

import "errors"

var (
	// ErrInvalidConfiguration は単位構成が検証を通らなかったことを示します。
	ErrInvalidConfiguration = errors.New("invalid package unit configuration")
	// ErrStorage はストアの書き込みに失敗したことを示します。
	ErrStorage             = errors.New("storage operation failed")
	ErrProductCodeRequired = errors.New("product code is required")
)
