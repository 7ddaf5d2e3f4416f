package bus

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// DefaultSettleTime is how long an AT device gets to start answering.
const DefaultSettleTime = 150 * time.Millisecond

// Port is the subset of a serial port the line protocols need.
type Port interface {
	io.ReadWriter
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// AT sends AT commands to a UART device such as a Bluetooth module.
type AT struct {
	port   Port
	settle time.Duration
}

// NewAT creates an AT command channel on port.
func NewAT(port Port) *AT {
	return &AT{port: port, settle: DefaultSettleTime}
}

// SendCommand writes cmd, waits the settle time, then collects the response line
// until a newline or timeout. Trailing input is flushed. The echoed command
// prefix and line terminators are stripped from the returned payload.
func (a *AT) SendCommand(ctx context.Context, cmd string, timeout time.Duration) (string, error) {
	if _, err := a.port.Write([]byte(cmd + "\r\n")); err != nil {
		return "", fmt.Errorf("failed to send %s: %w", cmd, err)
	}

	if err := sleep(ctx, a.settle); err != nil {
		return "", err
	}

	line, err := a.readLine(ctx, timeout)
	if err != nil {
		return "", fmt.Errorf("%s: %w", cmd, err)
	}

	if err := a.port.ResetInputBuffer(); err != nil {
		return "", fmt.Errorf("failed to flush input: %w", err)
	}

	if strings.TrimSpace(line) == "" {
		return "", fmt.Errorf("%s: %w", cmd, ErrNoResponse)
	}
	if strings.Contains(line, "ERROR") {
		return "", fmt.Errorf("%s: %w", cmd, ErrATError)
	}

	return ParseATResponse(cmd, line), nil
}

func (a *AT) readLine(ctx context.Context, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	var sb strings.Builder
	buf := make([]byte, 64)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return sb.String(), nil
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := a.port.SetReadTimeout(remaining); err != nil {
			return "", fmt.Errorf("failed to set read timeout: %w", err)
		}

		n, err := a.port.Read(buf)
		if n > 0 {
			chunk := string(buf[:n])
			if i := strings.IndexByte(chunk, '\n'); i >= 0 {
				sb.WriteString(chunk[:i+1])
				return sb.String(), nil
			}
			sb.WriteString(chunk)
		}
		if err == io.EOF {
			return sb.String(), nil
		}
		if err != nil {
			return "", fmt.Errorf("read failed: %w", err)
		}
		if n == 0 {
			// Read timed out.
			return sb.String(), nil
		}
	}
}

// ParseATResponse strips the echoed command and CR/LF from a response line.
// "AT+NAME=BUOY1\r\n" and "+NAME:BUOY1\r\n" both yield "BUOY1" for the commands
// "AT+NAME" and "AT+NAME?".
func ParseATResponse(cmd, line string) string {
	payload := strings.TrimRight(line, "\r\n")

	echo := strings.TrimSuffix(cmd, "?")
	for _, prefix := range []string{echo, strings.TrimPrefix(echo, "AT")} {
		if prefix != "" && strings.HasPrefix(payload, prefix) {
			payload = strings.TrimPrefix(payload, prefix)
			if len(payload) > 0 && (payload[0] == '=' || payload[0] == ':') {
				payload = payload[1:]
			}
			break
		}
	}

	return strings.TrimSpace(payload)
}
