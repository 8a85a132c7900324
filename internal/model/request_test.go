package model

import "testing"

func acceptedRequest() *Request {
	return &Request{
		ID:         "r-1",
		Title:      "Compra",
		CreatedBy:  RoleElder,
		Elder:      Party{UserID: "elder", Username: "elena", Address: "Calle Mayor 1", Phone: "600000001"},
		Helper:     Party{UserID: "helper", Username: "hugo", Address: "Calle Sol 2", Phone: "600000002"},
		AcceptedBy: "helper",
		Status:     StatusAccepted,
	}
}

func TestPublicHidesContactOnceClaimed(t *testing.T) {
	r := acceptedRequest()
	pub := r.Public()

	for _, p := range []Party{pub.Elder, pub.Helper} {
		if p.Phone != "" || p.Address != "" {
			t.Errorf("party %s kept contact details: %+v", p.UserID, p)
		}
	}
	if pub.Helper.Username != "hugo" || pub.Elder.UserID != "elder" {
		t.Errorf("public view lost identities: %+v", pub)
	}
	if r.Helper.Phone != "600000002" {
		t.Error("Public modified the original request")
	}
}

func TestPublicKeepsCreatorContactWhileOpen(t *testing.T) {
	r := &Request{
		ID:        "r-2",
		CreatedBy: RoleHelper,
		Helper:    Party{UserID: "helper", Username: "hugo", Address: "Calle Sol 2", Phone: "600000002"},
		Status:    StatusCreated,
	}
	pub := r.Public()
	if pub.Helper.Phone != "600000002" || pub.Helper.Address != "Calle Sol 2" {
		t.Errorf("open request lost creator contact: %+v", pub.Helper)
	}
}

func TestViewFor(t *testing.T) {
	r := acceptedRequest()

	tests := []struct {
		viewer    string
		wantPhone string
	}{
		{"elder", "600000002"},
		{"helper", "600000002"},
		{"sara", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := r.ViewFor(tt.viewer).Helper.Phone; got != tt.wantPhone {
			t.Errorf("ViewFor(%q).Helper.Phone = %q, want %q", tt.viewer, got, tt.wantPhone)
		}
	}
}
