package sentinel

// Compile-time check that Error implements the error interface.
var _ error = Error("")

// Error is a string-backed error that can be declared as a const. Wrapped
// chains still match through errors.Is because Error is comparable.
type Error string

// Error implements the error interface.
func (e Error) Error() string {
	return string(e)
}
