package testutil

// Ptr returns a pointer to the given value, for table fields that
// distinguish "unset" from a zero value.
//
//	testutil.Ptr(config.IntValue(5))
func Ptr[T any](v T) *T { return &v }
