package netmgr

import (
	"errors"
	"testing"

	"github.com/muurk/otaportal/internal/radio"
)

var testNetworks = []radio.Network{
	{SSID: "HomeNet", RSSI: -40, Channel: 6, Encryption: radio.EncryptionWPA2},
	{SSID: "CoffeeShop", RSSI: -70, Channel: 11, Encryption: radio.EncryptionOpen},
}

func TestScannerLifecycle(t *testing.T) {
	driver := radio.NewSimulated()
	driver.QueueScanResult(testNetworks)
	s := NewScanner(driver)

	if s.CachedCount() != NoScanYet {
		t.Errorf("CachedCount() before any scan = %d, want %d", s.CachedCount(), NoScanYet)
	}

	if err := s.RequestScan(); err != nil {
		t.Fatalf("RequestScan() error = %v", err)
	}
	if !s.Pending() {
		t.Error("Pending() = false after request")
	}

	result, ok := s.PollCompletion()
	if !ok {
		t.Fatal("PollCompletion() not ready, want completed scan")
	}
	if result.Failed {
		t.Error("result.Failed = true, want success")
	}
	if len(result.Networks) != 2 {
		t.Errorf("got %d networks, want 2", len(result.Networks))
	}
	if s.Pending() {
		t.Error("Pending() = true after completion")
	}
	if s.CachedCount() != 2 {
		t.Errorf("CachedCount() = %d, want 2", s.CachedCount())
	}
}

func TestScannerRequestWhilePending(t *testing.T) {
	driver := radio.NewSimulated()
	s := NewScanner(driver)

	if err := s.RequestScan(); err != nil {
		t.Fatalf("RequestScan() error = %v", err)
	}
	// A second request while pending is absorbed, not an error
	if err := s.RequestScan(); err != nil {
		t.Errorf("RequestScan() while pending error = %v, want nil", err)
	}
}

func TestScannerFailureInvalidatesCache(t *testing.T) {
	driver := radio.NewSimulated()
	driver.QueueScanResult(testNetworks)
	s := NewScanner(driver)

	if err := s.RequestScan(); err != nil {
		t.Fatalf("RequestScan() error = %v", err)
	}
	if _, ok := s.PollCompletion(); !ok {
		t.Fatal("first scan did not complete")
	}

	driver.FailNextScan(errors.New("radio busy"))
	if err := s.RequestScan(); err != nil {
		t.Fatalf("RequestScan() error = %v", err)
	}
	result, ok := s.PollCompletion()
	if !ok {
		t.Fatal("failed scan did not complete")
	}
	if !result.Failed {
		t.Error("result.Failed = false for failed scan")
	}
	if s.CachedCount() != NoScanYet {
		t.Errorf("CachedCount() after failure = %d, want %d", s.CachedCount(), NoScanYet)
	}
}

func TestPublishCached(t *testing.T) {
	driver := radio.NewSimulated()
	driver.QueueScanResult(testNetworks)
	s := NewScanner(driver)

	// Before any scan the published set is explicitly empty, not nil
	result := s.PublishCached()
	if result.Networks == nil || len(result.Networks) != 0 {
		t.Errorf("PublishCached() before scan = %v, want empty set", result.Networks)
	}

	if err := s.RequestScan(); err != nil {
		t.Fatalf("RequestScan() error = %v", err)
	}
	if _, ok := s.PollCompletion(); !ok {
		t.Fatal("scan did not complete")
	}

	result = s.PublishCached()
	if len(result.Networks) != 2 {
		t.Errorf("PublishCached() after scan has %d networks, want 2", len(result.Networks))
	}
	if s.Pending() {
		t.Error("PublishCached() started a scan")
	}
}

func TestPollCompletionWithoutRequest(t *testing.T) {
	s := NewScanner(radio.NewSimulated())
	if _, ok := s.PollCompletion(); ok {
		t.Error("PollCompletion() reported completion with no scan requested")
	}
}
