package protocol

// ErrorCode identifies the type of error.
type ErrorCode uint16

const (
	ErrUnknown        ErrorCode = 0x0000 // Unknown error
	ErrInvalidFrame   ErrorCode = 0x0001 // Malformed frame
	ErrInvalidEvent   ErrorCode = 0x0002 // Malformed event
	ErrUnknownNode    ErrorCode = 0x0003 // Event for a node without listeners
	ErrHandlerFailed  ErrorCode = 0x0004 // Handler returned an error
	ErrSessionExpired ErrorCode = 0x0005 // Session no longer valid
	ErrRenderFailed   ErrorCode = 0x0006 // Render abandoned
	ErrServerError    ErrorCode = 0x0100 // Internal server error
	ErrUnsupported    ErrorCode = 0x0101 // Version or codec not supported
)

// String returns the string representation of the error code.
func (ec ErrorCode) String() string {
	switch ec {
	case ErrUnknown:
		return "Unknown"
	case ErrInvalidFrame:
		return "InvalidFrame"
	case ErrInvalidEvent:
		return "InvalidEvent"
	case ErrUnknownNode:
		return "UnknownNode"
	case ErrHandlerFailed:
		return "HandlerFailed"
	case ErrSessionExpired:
		return "SessionExpired"
	case ErrRenderFailed:
		return "RenderFailed"
	case ErrServerError:
		return "ServerError"
	case ErrUnsupported:
		return "Unsupported"
	default:
		return "Unknown"
	}
}

// ErrorMessage reports a failure to the peer.
type ErrorMessage struct {
	Code    ErrorCode `msgpack:"c"`
	Message string    `msgpack:"m"`
	Fatal   bool      `msgpack:"f,omitempty"` // Connection closes after it
}

// FrameType implements Message.
func (*ErrorMessage) FrameType() FrameType { return FrameError }

func (em *ErrorMessage) encode(e *Encoder) {
	e.WriteUint16(uint16(em.Code))
	e.WriteString(em.Message)
	e.WriteBool(em.Fatal)
}

func decodeErrorMessage(d *Decoder) (*ErrorMessage, error) {
	code, err := d.ReadUint16()
	if err != nil {
		return nil, err
	}
	message, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	fatal, err := d.ReadBool()
	if err != nil {
		return nil, err
	}
	return &ErrorMessage{Code: ErrorCode(code), Message: message, Fatal: fatal}, nil
}

// NewError creates a non-fatal ErrorMessage.
func NewError(code ErrorCode, message string) *ErrorMessage {
	return &ErrorMessage{Code: code, Message: message}
}

// NewFatalError creates a fatal ErrorMessage.
func NewFatalError(code ErrorCode, message string) *ErrorMessage {
	return &ErrorMessage{Code: code, Message: message, Fatal: true}
}

// Error implements the error interface.
func (em *ErrorMessage) Error() string {
	if em.Fatal {
		return "fatal: " + em.Code.String() + ": " + em.Message
	}
	return em.Code.String() + ": " + em.Message
}
