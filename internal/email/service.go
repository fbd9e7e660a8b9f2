package email

import (
	"fmt"
	"net/smtp"
)

// Service handles email sending via SMTP
type Service struct {
	host string
	port string
	from string
}

// NewService creates a new email service
func NewService(host, port, from string) *Service {
	return &Service{
		host: host,
		port: port,
		from: from,
	}
}

// Configured reports whether the service can actually send mail.
func (s *Service) Configured() bool {
	return s.host != "" && s.from != ""
}

// SendOrderDelivery sends the buyer their purchased digital content.
func (s *Service) SendOrderDelivery(to, orderID string, items []DeliveredItem) error {
	shortID := orderID
	if len(orderID) > 8 {
		shortID = orderID[:8]
	}
	subject := fmt.Sprintf("Your order %s is ready", shortID)
	body := BuildOrderDeliveryBody(orderID, items)
	return s.send(to, subject, body)
}

// SendProcessingNotice tells the buyer a paid order is still being
// prepared, used when fulfillment could not complete immediately.
func (s *Service) SendProcessingNotice(to, orderID string) error {
	subject := fmt.Sprintf("Order %s: payment received", orderID)
	body := BuildProcessingBody(orderID)
	return s.send(to, subject, body)
}

func (s *Service) send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return smtp.SendMail(addr, nil, s.from, []string{to}, []byte(msg))
}
