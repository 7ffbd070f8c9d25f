package pair

import "errors"

var (
	ErrSlippageExceeded = errors.New("slippage limit exceeded")
	ErrNftNotInPool     = errors.New("nft not available for this trade")
	ErrEmptyPool        = errors.New("pool cannot cover this trade")
	ErrWrongPoolType    = errors.New("pool type forbids this trade")
	ErrUnauthorized     = errors.New("caller is not authorized")
	ErrTransferFailed   = errors.New("asset transfer failed")
)
