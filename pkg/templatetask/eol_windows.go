//go:build windows

package templatetask

// LineSeparator joins precompiled templates.
const LineSeparator = "\r\n"
