package device

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"go.bug.st/serial/enumerator"
)

// DefaultVendors are the product-string tokens of supported boards.
var DefaultVendors = []string{"pjrc", "teensy", "arduino"}

// ErrNoDevice is returned when no serial port looks like a supported board.
var ErrNoDevice = errors.New("device: no eligible serial port found")

// Select returns the first port whose product string contains one of the
// vendor tokens (case-insensitive) or that reports no product string.
func Select(ports []*enumerator.PortDetails, vendors []string) (*enumerator.PortDetails, error) {
	for _, p := range ports {
		if p == nil {
			continue
		}
		if eligible(p.Product, vendors) {
			return p, nil
		}
	}
	return nil, ErrNoDevice
}

func eligible(product string, vendors []string) bool {
	product = strings.ToLower(strings.TrimSpace(product))
	if product == "" {
		return true
	}
	for _, v := range vendors {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" && strings.Contains(product, v) {
			return true
		}
	}
	return false
}

// Discover lists the serial ports of the host and picks one with Select.
func Discover(logger *log.Logger, vendors []string) (string, error) {
	if logger == nil {
		logger = log.Default()
	}
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", fmt.Errorf("device: list ports: %w", err)
	}
	for _, p := range ports {
		logger.Printf("serial: detected port %s (%s)", p.Name, p.Product)
	}
	p, err := Select(ports, vendors)
	if err != nil {
		return "", err
	}
	logger.Printf("serial: using %s", p.Name)
	return p.Name, nil
}
