package store

import "errors"

var errNilRecord = errors.New("record must not be nil")
