package catalog

import (
	"errors"
	"testing"
)

func TestByIDKnownProduct(t *testing.T) {
	p, err := ByID(1)
	if err != nil {
		t.Fatalf("ByID(1) error = %v", err)
	}
	if p.Name == "" || p.Price <= 0 {
		t.Fatalf("expected populated product, got %+v", p)
	}
}

func TestByIDUnknownProduct(t *testing.T) {
	_, err := ByID(9999)
	if !errors.Is(err, ErrUnknownProduct) {
		t.Fatalf("expected ErrUnknownProduct, got %v", err)
	}
}

func TestAllReturnsCopy(t *testing.T) {
	all := All()
	if len(all) == 0 {
		t.Fatal("catalog is empty")
	}
	all[0].Name = "mutated"
	again, _ := ByID(all[0].ID)
	if again.Name == "mutated" {
		t.Fatal("All must return a copy of the catalog")
	}
}
