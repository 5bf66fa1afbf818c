// Package procutil launches helper programs (the mixer and the custom
// command) so they outlive the voltray process that started them.
package procutil
