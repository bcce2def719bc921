// Command device lists the serial ports of the host and shows which one the
// controller would pick.
package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"go.bug.st/serial/enumerator"

	"github.com/LeonardoBeccarini/growbox/internal/services/device"
)

func vendors() []string {
	v := strings.TrimSpace(os.Getenv("SERIAL_VENDORS"))
	if v == "" {
		return device.DefaultVendors
	}
	return strings.Split(v, ",")
}

func main() {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		log.Fatalf("list ports: %v", err)
	}
	for _, p := range ports {
		usb := ""
		if p.IsUSB {
			usb = fmt.Sprintf(" usb=%s:%s serial=%s", p.VID, p.PID, p.SerialNumber)
		}
		fmt.Printf("%s\t%q%s\n", p.Name, p.Product, usb)
	}

	p, err := device.Select(ports, vendors())
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	fmt.Printf("selected: %s\n", p.Name)
}
