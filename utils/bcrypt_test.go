package utils

import "testing"

func TestHashedPasswordVerifies(t *testing.T) {
	hash, err := HashPassword("tr0pic-p1neapple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := ComparePassword(string(hash), "tr0pic-p1neapple"); err != nil {
		t.Fatalf("minted hash did not verify: %v", err)
	}
	if err := ComparePassword(string(hash), "wrong-password"); err == nil {
		t.Fatal("wrong password verified")
	}
}
