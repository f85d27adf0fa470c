// Package queue defines message payloads exchanged over the message broker
// and the consumer that delivers them.
package queue

import "time"

// EmailMessage is published for every outbound email (welcome, password
// reset). HTML is already rendered; the consumer only delivers it.
type EmailMessage struct {
    ID        string    `json:"id"`
    From      string    `json:"from"`
    To        string    `json:"to"`
    Subject   string    `json:"subject"`
    HTML      string    `json:"html"`
    CreatedAt time.Time `json:"created_at"`
}

// Validate reports whether the message can be delivered at all.
func (m EmailMessage) Validate() error {
    switch {
    case m.To == "":
        return errMissingField("to")
    case m.Subject == "":
        return errMissingField("subject")
    case m.HTML == "":
        return errMissingField("html")
    }
    return nil
}

type errMissingField string

func (e errMissingField) Error() string { return "email message: missing " + string(e) }
