// Package utils provides loose type conversion helpers for upstream payloads whose fields arrive
// as strings in one response and numbers in the next.
package utils
