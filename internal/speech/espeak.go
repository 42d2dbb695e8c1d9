package speech

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// ESpeakSynthesizer runs espeak-ng locally and streams its wav output.
type ESpeakSynthesizer struct {
	binary string
	speed  int // words per minute
}

func NewESpeakSynthesizer(binary string) *ESpeakSynthesizer {
	if binary == "" {
		binary = "espeak-ng"
	}
	return &ESpeakSynthesizer{binary: binary, speed: 160}
}

func (s *ESpeakSynthesizer) Name() string {
	return "espeak-ng"
}

// IsAvailable checks that the binary can be found in PATH.
func (s *ESpeakSynthesizer) IsAvailable() error {
	if _, err := exec.LookPath(s.binary); err != nil {
		return fmt.Errorf("%s not found: %w", s.binary, err)
	}
	return nil
}

func (s *ESpeakSynthesizer) Synthesize(ctx context.Context, text, lang string) (io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, s.binary,
		"-v", espeakVoice(lang),
		"-s", strconv.Itoa(s.speed),
		"--stdout",
	)
	cmd.Stdin = strings.NewReader(text)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open espeak output: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", s.binary, err)
	}

	return &commandStream{ReadCloser: stdout, cmd: cmd}, nil
}

// espeakVoice maps a BCP 47 tag to an espeak-ng voice name.
func espeakVoice(lang string) string {
	if lang == "" {
		return "pt-br"
	}
	return strings.ToLower(lang)
}

type commandStream struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (c *commandStream) Close() error {
	c.ReadCloser.Close()
	// Wait reaps the process; a kill from context cancellation is expected.
	c.cmd.Wait()
	return nil
}
