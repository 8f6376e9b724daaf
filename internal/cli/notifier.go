package cli

import (
	"fmt"
	"io"
	"sync"
)

// consoleNotifier prints coordinator messages, one per line.
type consoleNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

func newConsoleNotifier(w io.Writer) *consoleNotifier {
	return &consoleNotifier{w: w}
}

func (n *consoleNotifier) print(prefix, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.w, "%s %s\n", prefix, message)
}

func (n *consoleNotifier) Info(message string)    { n.print("[info]", message) }
func (n *consoleNotifier) Success(message string) { n.print("[ok]", message) }
func (n *consoleNotifier) Warning(message string) { n.print("[warning]", message) }
func (n *consoleNotifier) Error(message string)   { n.print("[error]", message) }
