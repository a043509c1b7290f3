package poolregistry

import (
	"testing"

	"github.com/apestrong/amm-indexer/pkg/obserr"
)

func TestValidateAddressesReturnsProvidedWhenWellFormed(t *testing.T) {
	addrs := []string{"Czfq3xZZDmsdGdUyrNLtRhGc47cXcZtLG4crryfu44zE"}
	out, err := validateAddresses(addrs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0] != addrs[0] {
		t.Fatalf("expected passthrough of provided addresses, got %v", out)
	}
}

func TestValidateAddressesRejectsBadBase58(t *testing.T) {
	_, err := validateAddresses([]string{"not-valid-base58-!!!"})
	if err == nil {
		t.Fatal("expected error for malformed address")
	}
	if obserr.KindOf(err) != obserr.KindBadAddress {
		t.Fatalf("expected KindBadAddress, got %v", obserr.KindOf(err))
	}
}
