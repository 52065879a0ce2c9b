package docx

import "errors"

var (
	// ErrDanglingStyle is returned when paragraph or run references style
	// which is not defined in the styles part.
	ErrDanglingStyle = errors.New("style reference does not resolve")
	// ErrReservedName is returned when package already uses names reserved
	// for synthesized styles.
	ErrReservedName = errors.New("reserved style name in use")
	// ErrUnexpectedShape is returned for parts which do not follow expected
	// WordprocessingML structure.
	ErrUnexpectedShape = errors.New("unexpected part structure")
	// ErrEmptyCatalog is returned when there is nothing to build style map
	// from.
	ErrEmptyCatalog = errors.New("style catalog is empty")
)
