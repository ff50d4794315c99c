// Package iocli - ввод и вывод CLI клиента.
package iocli

// IO - консоль CLI клиента
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	ReadInput(prompt string) (string, error)
	ReadPassword(prompt string) (string, error)
}
