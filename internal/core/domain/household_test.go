package domain

import "testing"

func TestGroupHouseholds(t *testing.T) {
	rows := []Row{
		{ColDataID: "10", ColHeadName: "Reyes, Pedro", ColMemberName: ""},
		{ColDataID: "2", ColHeadName: "Santos, Maria", ColMemberName: ""},
		{ColDataID: "2", ColHeadName: "", ColMemberName: "Santos, Jose"},
		{ColDataID: "2", ColHeadName: "", ColMemberName: "Santos, Ana"},
		{ColDataID: "", ColMemberName: "stray row without id"},
	}

	got := GroupHouseholds(rows)
	if len(got) != 2 {
		t.Fatalf("households = %d, want 2", len(got))
	}

	// Numeric sort: 2 before 10, not lexicographic.
	if got[0].DataID != "2" || got[1].DataID != "10" {
		t.Fatalf("order = %s, %s", got[0].DataID, got[1].DataID)
	}

	if got[0].Head[ColHeadName] != "Santos, Maria" {
		t.Fatalf("head = %+v", got[0].Head)
	}
	if len(got[0].Members) != 2 {
		t.Fatalf("members = %d, want 2", len(got[0].Members))
	}
	if len(got[1].Members) != 0 {
		t.Fatalf("head-only household has members: %+v", got[1].Members)
	}
}

func TestGroupHouseholdsPromotesFirstMember(t *testing.T) {
	rows := []Row{
		{ColDataID: "5", ColMemberName: "Cruz, Ben"},
		{ColDataID: "5", ColMemberName: "Cruz, Lina"},
	}

	got := GroupHouseholds(rows)
	if len(got) != 1 {
		t.Fatalf("households = %d, want 1", len(got))
	}
	if got[0].Head[ColMemberName] != "Cruz, Ben" {
		t.Fatalf("promoted head = %+v", got[0].Head)
	}
	if len(got[0].Members) != 1 || got[0].Members[0][ColMemberName] != "Cruz, Lina" {
		t.Fatalf("members = %+v", got[0].Members)
	}
}

func TestGroupHouseholdsNonNumericIDs(t *testing.T) {
	rows := []Row{
		{ColDataID: "B-2", ColMemberName: ""},
		{ColDataID: "A-1", ColMemberName: ""},
	}
	got := GroupHouseholds(rows)
	if got[0].DataID != "A-1" || got[1].DataID != "B-2" {
		t.Fatalf("lexicographic fallback broken: %s, %s", got[0].DataID, got[1].DataID)
	}
}

func TestBroadcastable(t *testing.T) {
	if !(Activity{Action: ActionCreateRecord}).Broadcastable() {
		t.Fatal("create not broadcastable")
	}
	if (Activity{Action: "User Login"}).Broadcastable() {
		t.Fatal("login should not be broadcastable")
	}
}
