// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package alertstore

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func rawOf(t *testing.T, v interface{}) bson.RawValue {
	t.Helper()

	doc, err := bson.Marshal(bson.M{"v": v})
	if err != nil {
		t.Fatal(err)
	}
	return bson.Raw(doc).Lookup("v")
}

func TestRawBool(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   bson.RawValue
		want bool
	}{
		{"bool true", rawOf(t, true), true},
		{"bool false", rawOf(t, false), false},
		{"detector string false", rawOf(t, "false"), false},
		{"string true", rawOf(t, "True"), true},
		{"missing", bson.RawValue{}, false},
		{"number", rawOf(t, 1), false},
	}
	for _, tt := range tests {
		if got := rawBool(tt.in); got != tt.want {
			t.Errorf("%s: rawBool = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestAlertDocumentToModel(t *testing.T) {
	t.Parallel()

	oid := primitive.NewObjectIDFromTimestamp(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	doc := alertDocument{
		ID:              oid,
		FootageURL:      "https://ipfs.io/ipfs/QmX",
		Location:        "Gate 3",
		AnomalyDate:     "2024-03-01",
		AnomalyTime:     "09:00:00",
		Coordinates:     rawOf(t, "12.97,77.59"),
		CreatedContract: rawOf(t, "false"),
	}

	a := doc.toModel()
	if a.ID != oid.Hex() {
		t.Errorf("ID = %s", a.ID)
	}
	if a.CreatedContract {
		t.Error("string false should decode as unprocessed")
	}
	if a.Coordinates != "12.97,77.59" {
		t.Errorf("Coordinates = %q", a.Coordinates)
	}
	if !a.CreatedAt.Equal(oid.Timestamp()) {
		t.Errorf("CreatedAt = %v, want ObjectID time %v", a.CreatedAt, oid.Timestamp())
	}

	explicit := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	doc.CreatedAt = &explicit
	if got := doc.toModel().CreatedAt; !got.Equal(explicit) {
		t.Errorf("CreatedAt = %v, want %v", got, explicit)
	}
}

func TestParseID(t *testing.T) {
	t.Parallel()

	if _, err := parseID("65f1a0c2e4b0a1b2c3d4e5f6"); err != nil {
		t.Errorf("valid id rejected: %v", err)
	}
	if _, err := parseID("65f1"); err == nil {
		t.Error("short id accepted")
	}
}

func TestNewestFirstPipeline(t *testing.T) {
	t.Parallel()

	p := newestFirst(unprocessedFilter(), 20, 10)
	var stages []string
	for _, stage := range p {
		stages = append(stages, stage[0].Key)
	}
	want := []string{"$match", "$addFields", "$sort", "$skip", "$limit"}
	if len(stages) != len(want) {
		t.Fatalf("stages = %v, want %v", stages, want)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Fatalf("stages = %v, want %v", stages, want)
		}
	}

	// Documents without createdAt sort on their ObjectID time.
	sortAt := p[1][0].Value.(bson.M)[fieldSortAt].(bson.M)["$ifNull"].(bson.A)
	if sortAt[0] != "$"+fieldCreatedAt {
		t.Errorf("sort key primary = %v", sortAt[0])
	}
	if fallback := sortAt[1].(bson.M)["$toDate"]; fallback != "$"+fieldID {
		t.Errorf("sort key fallback = %v, want $toDate of _id", fallback)
	}

	order := p[2][0].Value.(bson.D)
	if order[0].Key != fieldSortAt || order[0].Value != -1 || order[1].Key != fieldID || order[1].Value != -1 {
		t.Errorf("sort = %v", order)
	}

	if short := newestFirst(bson.M{}, 0, 1); len(short) != 4 {
		t.Errorf("zero skip should omit $skip, got %d stages", len(short))
	}
}
