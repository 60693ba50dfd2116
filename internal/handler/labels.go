package handler

import (
	"github.com/lottodesk/platform/internal/admission"
	"github.com/lottodesk/platform/internal/domain"
)

// statusLabels are the Thai display labels shown to shop staff.
var statusLabels = map[domain.AdmissionStatus]string{
	domain.StatusAdmitted:  "ผ่านการตรวจสอบ",
	domain.StatusClosed:    "ปิดรับเลขแล้ว",
	domain.StatusOverLimit: "เกินวงเงินที่กำหนด",
}

// StatusLabel returns the display label for s, or s itself when unknown.
func StatusLabel(s domain.AdmissionStatus) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

type outcomeView struct {
	admission.Outcome
	Label string `json:"label"`
}

type billItemView struct {
	domain.BillItem
	Label string `json:"label"`
}

type billView struct {
	domain.Bill
	Items []billItemView `json:"items"`
}

func outcomeViews(outcomes []admission.Outcome) []outcomeView {
	out := make([]outcomeView, len(outcomes))
	for i, o := range outcomes {
		out[i] = outcomeView{Outcome: o, Label: StatusLabel(o.Status)}
	}
	return out
}

func newBillView(b domain.Bill) billView {
	items := make([]billItemView, len(b.Items))
	for i, it := range b.Items {
		items[i] = billItemView{BillItem: it, Label: StatusLabel(it.Status)}
	}
	return billView{Bill: b, Items: items}
}
