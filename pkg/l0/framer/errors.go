package framer

import "errors"

var (
	// ErrInvalidHandle indicates a Handle not issued by the Bank.
	ErrInvalidHandle = errors.New("invalid handle")
	// ErrNoPort indicates a link without a transport.
	ErrNoPort = errors.New("link has no port")
	// ErrBufferSize indicates a receive buffer too small for any frame.
	ErrBufferSize = errors.New("buffer too small for a frame")
	// ErrPayloadSize indicates a payload length outside MinPayloadSize..MaxPayloadSize.
	ErrPayloadSize = errors.New("invalid payload size")
	// ErrMalformedFrame indicates bytes which aren't a single valid frame.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrDuplicateCounter indicates two counters sharing the same ID.
	ErrDuplicateCounter = errors.New("duplicate counter id")
)
