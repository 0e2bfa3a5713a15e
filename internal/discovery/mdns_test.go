// ABOUTME: Tests for mDNS discovery
// ABOUTME: Covers TXT records and service entry conversion
package discovery

import (
	"net"
	"strings"
	"testing"

	"github.com/hashicorp/mdns"

	"github.com/Resonate-Protocol/resonate-speaker/internal/version"
)

func TestNewManager(t *testing.T) {
	mgr := NewManager(Config{ServiceName: "Kitchen", Port: 8928, Path: "/control"})
	if mgr == nil {
		t.Fatal("expected manager to be created")
	}
	mgr.Stop()
}

func TestTXTRecords(t *testing.T) {
	mgr := NewManager(Config{ServiceName: "Kitchen", Port: 8928, Path: "/control"})
	defer mgr.Stop()

	txt := strings.Join(mgr.TXT(), ";")
	for _, want := range []string{"path=/control", "version=" + version.Version, "product=" + version.Product} {
		if !strings.Contains(txt, want) {
			t.Errorf("TXT records missing %q: %s", want, txt)
		}
	}
}

func TestServerFromEntry(t *testing.T) {
	entry := &mdns.ServiceEntry{
		Name:       "Kitchen." + ServiceType + ".local.",
		AddrV4:     net.IPv4(192, 168, 1, 20),
		Port:       8928,
		InfoFields: []string{"path=/control", "version=1.2.3", "junk"},
	}

	info := serverFromEntry(entry)
	if info == nil {
		t.Fatal("expected server info")
	}
	if info.Name != "Kitchen" || info.Path != "/control" || info.Version != "1.2.3" {
		t.Errorf("unexpected info %+v", info)
	}
	if info.Addr() != "192.168.1.20:8928" {
		t.Errorf("unexpected addr %s", info.Addr())
	}

	if serverFromEntry(&mdns.ServiceEntry{Name: "v6only"}) != nil {
		t.Error("entries without IPv4 must be ignored")
	}
}

func TestServiceCreation(t *testing.T) {
	mgr := NewManager(Config{ServiceName: "Kitchen", Port: 8928, Path: "/control"})
	defer mgr.Stop()

	_, err := mdns.NewMDNSService("Kitchen", ServiceType, "", "", 8928, []net.IP{net.IPv4(10, 0, 0, 2)}, mgr.TXT())
	if err != nil {
		t.Fatalf("service record rejected: %v", err)
	}
}
