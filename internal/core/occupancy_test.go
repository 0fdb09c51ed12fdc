package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestQuantizeKeepsTotal(t *testing.T) {
	third := decimal.NewFromInt(1).Div(decimal.NewFromInt(3))
	got := quantize([]decimal.Decimal{third, third, third}, 2)
	want := []string{"0.33", "0.34", "0.33"}
	sum := decimal.Zero
	for i, w := range want {
		if !got[i].Equal(dec(w)) {
			t.Fatalf("part %d: expected %s, got %s", i, w, got[i])
		}
		sum = sum.Add(got[i])
	}
	if !sum.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected parts to sum to 1, got %s", sum)
	}
}

func TestFIFOTake(t *testing.T) {
	f := &fifo{sources: []feedSource{{LotID: "A", Available: dec("2")}, {LotID: "B", Available: dec("3")}}}
	cases := []struct {
		need string
		want []draw
	}{
		{"1.5", []draw{{LotID: "A", Qty: dec("1.5")}}},
		{"1", []draw{{LotID: "A", Qty: dec("0.5")}, {LotID: "B", Qty: dec("0.5")}}},
		{"5", []draw{{LotID: "B", Qty: dec("5")}}},
	}
	for _, tc := range cases {
		got := f.take(dec(tc.need))
		if len(got) != len(tc.want) {
			t.Fatalf("take %s: expected %v, got %v", tc.need, tc.want, got)
		}
		for i := range got {
			if got[i].LotID != tc.want[i].LotID || !got[i].Qty.Equal(tc.want[i].Qty) {
				t.Fatalf("take %s: expected %v, got %v", tc.need, tc.want, got)
			}
		}
	}
	if !f.sources[1].Available.Equal(dec("-2.5")) {
		t.Fatalf("expected last lot to absorb the overdraw, got %s", f.sources[1].Available)
	}
}

func TestSpanAnimalDays(t *testing.T) {
	spans := []span{
		{LocationID: "L1", LotID: "a", Qty: 4, Start: day0, End: day0.AddDate(0, 0, 6)},
		{LocationID: "L1", LotID: "b", Qty: 1, Start: day0, End: day0},
		{LocationID: "L2", LotID: "c", Qty: 2, Start: day0, End: day0.AddDate(0, 0, 1)},
	}
	if d := spans[0].Days(); d != 7 {
		t.Fatalf("expected 7 days, got %d", d)
	}
	per, total := locationAnimalDays(spans)
	if per["L1"] != 29 || per["L2"] != 4 || total != 33 {
		t.Fatalf("unexpected animal days %v total %d", per, total)
	}
}
