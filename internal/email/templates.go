package email

import (
	"fmt"
	"html"
	"strings"
)

// DeliveredItem is one fulfilled line of an order for email purposes.
type DeliveredItem struct {
	Name    string
	Content string
}

// BuildOrderDeliveryBody builds the HTML body carrying the purchased
// digital content.
func BuildOrderDeliveryBody(orderID string, items []DeliveredItem) string {
	var itemsHTML strings.Builder
	for _, item := range items {
		itemsHTML.WriteString(fmt.Sprintf(
			`<div style="margin: 20px 0;">
				<p style="margin: 0 0 5px 0; font-weight: bold;">%s</p>
				<pre style="background: #f8f9fa; padding: 15px; border-radius: 5px; font-family: monospace; white-space: pre-wrap; margin: 0;">%s</pre>
			</div>`,
			html.EscapeString(item.Name),
			html.EscapeString(item.Content),
		))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<h1 style="font-size: 22px;">Thank you for your purchase</h1>
	<div style="background: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0;">
		<p style="margin: 0; font-size: 14px; color: #666;">Order</p>
		<p style="margin: 5px 0 0 0; font-size: 18px; font-weight: bold; font-family: monospace;">%s</p>
	</div>
	<p>Your digital items are below. Keep this email safe.</p>
	%s
</body>
</html>`, html.EscapeString(orderID), itemsHTML.String())
}

// BuildProcessingBody builds the HTML body for a paid order whose
// content is still being prepared.
func BuildProcessingBody(orderID string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<h1 style="font-size: 22px;">Payment received</h1>
	<p>We received your payment for order <strong style="font-family: monospace;">%s</strong>.</p>
	<p>Your items are being prepared and will arrive in a separate email shortly.</p>
</body>
</html>`, html.EscapeString(orderID))
}
