package pipeline

import "errors"

// ErrDownload indicates the remote audio could not be fetched (HTTP
// error status or transport failure).
var ErrDownload = errors.New("audio download failed")

// ErrEmptyFile indicates the downloaded audio file has zero bytes.
var ErrEmptyFile = errors.New("downloaded audio file is empty")
