package identity

import (
	"bufio"
	"context"
	"os"
	"strconv"
	"strings"
)

// DefaultARPTable is the kernel's IPv4 neighbor table.
const DefaultARPTable = "/proc/net/arp"

// atfComplete marks a resolved entry in the flags column.
const atfComplete = 0x2

// ARPTableResolver reads the kernel ARP table from procfs.
//
// Format:
//
//	IP address       HW type     Flags       HW address            Mask     Device
//	192.168.1.1      0x1         0x2         00:11:22:33:44:55     *        eth0
type ARPTableResolver struct {
	Path      string // defaults to DefaultARPTable
	Interface string // optional device filter
}

func (r *ARPTableResolver) Resolve(ctx context.Context, ip string) (string, bool) {
	path := r.Path
	if path == "" {
		path = DefaultARPTable
	}

	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	// Skip header
	scanner.Scan()

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 6 || fields[0] != ip {
			continue
		}
		if r.Interface != "" && fields[5] != r.Interface {
			continue
		}
		flags, err := strconv.ParseUint(strings.TrimPrefix(fields[2], "0x"), 16, 32)
		if err != nil || flags&atfComplete == 0 {
			continue
		}
		if mac, ok := normalize(fields[3]); ok {
			return mac, true
		}
	}
	return "", false
}
