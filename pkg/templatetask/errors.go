package templatetask

import "errors"

// ErrListInput is returned when compile mode receives a list of paths. Compile
// renders exactly one template; the list is rejected before any file is read.
var ErrListInput = errors.New("templatetask: compile requires a single input path, got a list")
