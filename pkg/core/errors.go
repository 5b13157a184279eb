package core

import "errors"

var (
	ErrIniting = errors.New("core: init is already running")
	ErrInited  = errors.New("core: you cannot change the app after it has been inited")

	ErrUnknownTask = errors.New("core: unknown task")
	ErrNotLoadable = errors.New("core: path is not a file or directory")
)
