package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildOrderDeliveryBody(t *testing.T) {
	body := BuildOrderDeliveryBody("ord-1", []DeliveredItem{
		{Name: "License A", Content: "KEY-AAA\nKEY-BBB"},
	})

	assert.Contains(t, body, "ord-1")
	assert.Contains(t, body, "License A")
	assert.Contains(t, body, "KEY-AAA")
}

func TestBuildOrderDeliveryBody_EscapesHTML(t *testing.T) {
	body := BuildOrderDeliveryBody("ord-1", []DeliveredItem{
		{Name: "<script>alert(1)</script>", Content: "a&b<c"},
	})

	assert.NotContains(t, body, "<script>alert(1)</script>")
	assert.Contains(t, body, "&lt;script&gt;")
	assert.Contains(t, body, "a&amp;b&lt;c")
}

func TestBuildProcessingBody(t *testing.T) {
	body := BuildProcessingBody("ord-1")
	assert.Contains(t, body, "ord-1")
	assert.Contains(t, body, "payment")
}

func TestService_Configured(t *testing.T) {
	assert.False(t, NewService("", "587", "shop@example.com").Configured())
	assert.False(t, NewService("smtp.example.com", "587", "").Configured())
	assert.True(t, NewService("smtp.example.com", "587", "shop@example.com").Configured())
}
