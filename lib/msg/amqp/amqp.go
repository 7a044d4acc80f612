// Package amqp implements the message broker interface for AMQP compliant brokers (ie RabbitMQ)
package amqp

import (
	"encoding/json"
	"log"

	"github.com/streadway/amqp"

	"github.com/tarancss/airnode/lib/msg"
)

// Amqp implements a connection to a broker and a channel for reuse.
type Amqp struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// New instantiates a new amqp broker.
func New(uri string) (msg.MsgBroker, error) {
	r := Amqp{}
	var err error

	if r.conn, err = amqp.Dial(uri); err != nil {
		return &r, err
	}
	r.ch = nil
	log.Printf("Connected to %s", uri)

	return &r, err
}

// Setup obtains an amqp channel and declares the "af" ("airnode fulfillments") exchange the coordinator publishes
// transaction events to.
func (r *Amqp) Setup(x interface{}) error {
	// obtain a one-use channel
	channel, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer channel.Close()
	// declare exchange
	return channel.ExchangeDeclare("af", "topic", true, false, false, false, nil)
}

// Close terminates gracefully the connection to the AMQP message broker
func (r *Amqp) Close() error {
	if r.ch != nil {
		if err := r.ch.Close(); err != nil {
			log.Printf("Error closing amqp.Channel:%e", err)
		}
		r.ch = nil
		log.Printf("amqp.Channel closed!")
	}
	return r.conn.Close()
}

// SendFulfillments publishes transaction events to the "af" exchange
func (r *Amqp) SendFulfillments(events []msg.Event) (err error) {
	for _, e := range events {
		// marshal to JSON
		var jsonDoc []byte
		if jsonDoc, err = json.Marshal(e); err != nil {
			return
		}
		// obtain channel if not present
		if r.ch == nil {
			if r.ch, err = r.conn.Channel(); err != nil {
				return
			}
		}
		// build body
		pub := amqp.Publishing{
			Headers:     amqp.Table{"x-fulfillment-name": e.Chain + "." + e.RequestID},
			Body:        jsonDoc,
			ContentType: "application/json",
		}
		// publish
		if err = r.ch.Publish("af", e.Chain+"."+e.Kind+"."+e.RequestID, false, false, pub); err != nil {
			log.Printf("[%s] Error sending fulfillment event to message broker %e", e.Chain, err)
		}
	}
	return
}
