package telegram

import (
	"errors"
	"net/url"
	"testing"
)

func TestParseInitData(t *testing.T) {
	vals := url.Values{}
	vals.Set("user", `{"id":77,"username":"miner","first_name":"Ann"}`)
	vals.Set("start_param", "REF5412")
	vals.Set("auth_date", "1700000000")

	d, err := ParseInitData(vals.Encode())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.User.ID != 77 || d.User.Username != "miner" || d.StartParam != "REF5412" || d.AuthDate.Unix() != 1700000000 {
		t.Fatalf("unexpected %+v", d)
	}

	if _, err := ParseInitData("auth_date=1"); !errors.Is(err, ErrNoUser) {
		t.Fatalf("expected ErrNoUser, got %v", err)
	}
	if _, err := ParseInitData(`user={"id":0}`); !errors.Is(err, ErrNoUser) {
		t.Fatalf("expected ErrNoUser for zero id, got %v", err)
	}
}
