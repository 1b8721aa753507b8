package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/dzshop/order-orchestrator/internal/gateway"
	"github.com/google/uuid"
)

// Replays gateway and carrier webhook deliveries against a locally running
// instance. Useful for poking at idempotency: run the same command twice and
// the second delivery must be a no-op.

var (
	target  = flag.String("target", "http://localhost:8080", "base URL of the running service")
	secret  = flag.String("secret", "whsec_test", "gateway webhook signing secret")
	orderID = flag.String("order", "", "order ID to reference (required for charge and carrier events)")
	kind    = flag.String("kind", "charge.captured", "event to send: checkout.session.completed, charge.captured, charge.refunded, or a carrier status like delivered")
	amount  = flag.Int64("amount", 2000, "charge amount in minor units")
)

func main() {
	flag.Parse()

	switch *kind {
	case gateway.EventSessionCompleted, gateway.EventChargeCaptured, gateway.EventChargeRefunded:
		sendGatewayEvent()
	default:
		sendCarrierEvent()
	}
}

func sendGatewayEvent() {
	if *orderID == "" {
		log.Fatal("-order is required")
	}

	ev := gateway.Event{
		ID:   "evt_" + uuid.NewString(),
		Type: *kind,
		Data: gateway.EventData{
			SessionID: "cs_" + uuid.NewString(),
			Reference: *orderID,
			ChargeID:  "ch_" + uuid.NewString(),
			Amount:    *amount,
			Currency:  "DZD",
		},
	}

	body, err := json.Marshal(ev)
	if err != nil {
		log.Fatal(err)
	}

	req, err := http.NewRequest(http.MethodPost, *target+"/webhooks/payment", bytes.NewReader(body))
	if err != nil {
		log.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(gateway.SignatureHeader, gateway.Sign(*secret, time.Now(), body))

	send(req, ev.Type)
}

func sendCarrierEvent() {
	if *orderID == "" {
		log.Fatal("-order is required")
	}

	payload := map[string]any{
		"event": "parcel.status.updated",
		"data": map[string]string{
			"order_id": *orderID,
			"status":   *kind,
			"note":     "simulated delivery update",
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Fatal(err)
	}

	req, err := http.NewRequest(http.MethodPost, *target+"/webhooks/delivery", bytes.NewReader(body))
	if err != nil {
		log.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")

	send(req, *kind)
}

func send(req *http.Request, kind string) {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	fmt.Printf("sent %s: %s\n", kind, resp.Status)
}
