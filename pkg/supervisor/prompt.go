package supervisor

import (
	"fmt"
	"io"
)

const AnsiClearLine = "\033[2K\n"

func gracefulShutdownPrompt(out io.Writer) {
	fmt.Fprint(out, AnsiClearLine+"Shutting down, waiting for tasks to finish. Press Ctrl+C again to forcefully exit.\n")
}
