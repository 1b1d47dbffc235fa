package playback

import (
	"context"
	"fmt"
	"os/exec"
)

// Player renders audio at a URL. Play blocks until playback ends or ctx is
// cancelled.
type Player interface {
	Play(ctx context.Context, url string) error
}

// ExecPlayer plays URLs with an external command, e.g. ffplay.
type ExecPlayer struct {
	Command string
	Args    []string
}

// NewExecPlayer creates a player running command with args followed by the URL.
func NewExecPlayer(command string, args []string) *ExecPlayer {
	return &ExecPlayer{Command: command, Args: args}
}

// Play implements Player.
func (p *ExecPlayer) Play(ctx context.Context, url string) error {
	if p.Command == "" {
		return fmt.Errorf("no playback command configured")
	}
	args := append(append([]string{}, p.Args...), url)
	cmd := exec.CommandContext(ctx, p.Command, args...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w", p.Command, err)
	}
	return nil
}
