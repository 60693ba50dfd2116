package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/lottodesk/platform/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outcomeBody struct {
	Number    string                 `json:"number"`
	Requested decimal.Decimal        `json:"requested_amount"`
	Amount    decimal.Decimal        `json:"amount"`
	Status    domain.AdmissionStatus `json:"status"`
	Label     string                 `json:"label"`
}

type submitBody struct {
	Bill struct {
		ID             uuid.UUID       `json:"id"`
		Amount         decimal.Decimal `json:"amount"`
		IdempotencyKey *string         `json:"idempotency_key"`
		Items          []outcomeBody   `json:"items"`
	} `json:"bill"`
	Outcomes   []outcomeBody   `json:"outcomes"`
	Total      decimal.Decimal `json:"total"`
	Idempotent bool            `json:"idempotent"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func decodeBody(t *testing.T, body []byte, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(body, dst), string(body))
}

func TestBillHandler_Submit(t *testing.T) {
	t.Run("201 then 200 on replay with the same key", func(t *testing.T) {
		api := newTestAPI()
		api.close(domain.BetTwoTop, "13")
		api.limit(domain.BetThreeTop, "456", "100", "95")
		key := http.Header{"Idempotency-Key": {"shift-1-bill-7"}}

		w := api.do(t, http.MethodPost, "/bills", `{"items":[
			{"bet_type":"twoTop","number":"12","amount":"50"},
			{"bet_type":"twoTop","number":"13","amount":"40"},
			{"bet_type":"threeTop","number":"456","amount":"30"}
		]}`, key)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var first submitBody
		decodeBody(t, w.Body.Bytes(), &first)
		assert.False(t, first.Idempotent)
		assert.Equal(t, "55", first.Total.String())
		require.NotNil(t, first.Bill.IdempotencyKey)
		assert.Equal(t, "shift-1-bill-7", *first.Bill.IdempotencyKey)

		require.Len(t, first.Outcomes, 3)
		assert.Equal(t, domain.StatusAdmitted, first.Outcomes[0].Status)
		assert.Equal(t, "ผ่านการตรวจสอบ", first.Outcomes[0].Label)
		assert.Equal(t, domain.StatusClosed, first.Outcomes[1].Status)
		assert.Equal(t, "ปิดรับเลขแล้ว", first.Outcomes[1].Label)
		assert.Equal(t, domain.StatusOverLimit, first.Outcomes[2].Status)
		assert.Equal(t, "เกินวงเงินที่กำหนด", first.Outcomes[2].Label)
		assert.Equal(t, "5", first.Outcomes[2].Amount.String())

		require.Len(t, first.Bill.Items, 3)
		assert.Equal(t, "ปิดรับเลขแล้ว", first.Bill.Items[1].Label)

		// A retry with a different body still returns the stored bill.
		w = api.do(t, http.MethodPost, "/bills", `{"items":[{"bet_type":"twoTop","number":"99","amount":"1"}]}`, key)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var replay submitBody
		decodeBody(t, w.Body.Bytes(), &replay)
		assert.True(t, replay.Idempotent)
		assert.Equal(t, first.Bill.ID, replay.Bill.ID)
		assert.Equal(t, "55", replay.Total.String())
		assert.Empty(t, replay.Outcomes)
		assert.Len(t, api.bills.stored, 1)
		assert.Equal(t, "100", api.limits.entries[0].AmountUsed.String())
	})

	t.Run("without a key every post is a new bill", func(t *testing.T) {
		api := newTestAPI()
		body := `{"items":[{"bet_type":"twoTop","number":"12","amount":"10"}]}`

		for i := 0; i < 2; i++ {
			w := api.do(t, http.MethodPost, "/bills", body, nil)
			require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		}
		require.Len(t, api.bills.stored, 2)
		assert.Nil(t, api.bills.stored[0].IdempotencyKey)
	})

	t.Run("missing item amount is rejected", func(t *testing.T) {
		api := newTestAPI()

		w := api.do(t, http.MethodPost, "/bills", `{"items":[
			{"bet_type":"twoTop","number":"12","amount":"10"},
			{"bet_type":"twoTop","number":"34"}
		]}`, nil)
		require.Equal(t, http.StatusBadRequest, w.Code)

		var body errorBody
		decodeBody(t, w.Body.Bytes(), &body)
		assert.Equal(t, "VALIDATION_ERROR", body.Code)
		assert.Contains(t, body.Message, "item 1: amount is required")
		assert.Empty(t, api.bills.stored)
	})

	t.Run("nothing admissible is 422", func(t *testing.T) {
		api := newTestAPI()
		api.close(domain.BetTwoTop, "13")

		w := api.do(t, http.MethodPost, "/bills", `{"items":[{"bet_type":"twoTop","number":"13","amount":"10"}]}`, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Empty(t, api.bills.stored)
	})

	t.Run("unknown field is rejected", func(t *testing.T) {
		api := newTestAPI()

		w := api.do(t, http.MethodPost, "/bills", `{"items":[{"bet_type":"twoTop","number":"12","amount":"10","price":"1"}]}`, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestBillHandler_Preview(t *testing.T) {
	api := newTestAPI()
	api.close(domain.BetTwoBottom, "07")
	l := api.limit(domain.BetTwoTop, "07", "30", "0")

	w := api.do(t, http.MethodPost, "/bills/preview", `{"items":[
		{"bet_type":"twoTop","number":"07","amount":"20"},
		{"bet_type":"twoTop","number":"07","amount":"20"},
		{"bet_type":"twoBottom","number":"07","amount":"5"}
	]}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Outcomes []outcomeBody  `json:"outcomes"`
		Total    decimal.Decimal `json:"total"`
	}
	decodeBody(t, w.Body.Bytes(), &body)
	assert.Equal(t, "30", body.Total.String())
	require.Len(t, body.Outcomes, 3)
	assert.Equal(t, "ผ่านการตรวจสอบ", body.Outcomes[0].Label)
	assert.Equal(t, domain.StatusOverLimit, body.Outcomes[1].Status)
	assert.Equal(t, "เกินวงเงินที่กำหนด", body.Outcomes[1].Label)
	assert.Equal(t, "10", body.Outcomes[1].Amount.String())
	assert.Equal(t, "ปิดรับเลขแล้ว", body.Outcomes[2].Label)

	assert.Empty(t, api.bills.stored)
	assert.True(t, api.limits.entries[0].AmountUsed.IsZero(), "preview must not consume limit %s", l.ID)
}
