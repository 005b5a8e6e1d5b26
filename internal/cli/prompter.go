package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"growthcore/internal/core"
)

// linePrompter asks on out and reads one line per prompt from in. End of
// input cancels; an empty line takes the default, or cancels when there is none.
type linePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newLinePrompter(in io.Reader, out io.Writer) *linePrompter {
	return &linePrompter{in: bufio.NewReader(in), out: out}
}

func (p *linePrompter) Prompt(ctx context.Context, req core.PromptRequest) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	switch {
	case req.Kind == core.PromptConfirm:
		fmt.Fprintf(p.out, "%s [y/N]: ", req.Label)
	case req.Default != "":
		fmt.Fprintf(p.out, "%s [%s]: ", req.Label, req.Default)
	default:
		fmt.Fprintf(p.out, "%s: ", req.Label)
	}
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", false, err
	}
	if errors.Is(err, io.EOF) && line == "" {
		fmt.Fprintln(p.out)
		return "", false, nil
	}
	line = strings.TrimSpace(line)
	if line == "" {
		if req.Default == "" && req.Kind != core.PromptConfirm {
			return "", false, nil
		}
		return req.Default, true, nil
	}
	return line, true, nil
}
