package audio

import "errors"

// ErrFileNotFound indicates the specified input file does not exist.
var ErrFileNotFound = errors.New("file not found")

// ErrEmptyInput indicates the input audio file has zero bytes.
var ErrEmptyInput = errors.New("input file is empty")

// ErrSplitFailed indicates the split produced no chunks, or a non-final
// chunk failed to encode.
var ErrSplitFailed = errors.New("audio split failed")
