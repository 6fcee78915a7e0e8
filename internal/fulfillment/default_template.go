package fulfillment

// purchaseTemplateName is the DB template resolved for voucher emails.
const purchaseTemplateName = "voucher_purchase"

// Fallback template used when no active DB template exists.
const (
	defaultSubject = "Tu vale regalo ha sido generado - {{amount}}"

	defaultBodyHTML = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; margin: 0; padding: 20px; background-color: #f4f4f4;">
  <div style="max-width: 600px; margin: 0 auto; background-color: white; padding: 30px; border-radius: 10px;">
    <h1 style="color: #1a1a2e; text-align: center;">Vale Regalo Generado</h1>
    <p style="font-size: 16px; color: #333;">Hola <strong>{{purchaserName}}</strong>,</p>
    <p style="font-size: 16px; color: #333;">Tu vale regalo ha sido generado exitosamente.</p>
    <div style="background-color: #f0f9ff; padding: 20px; border-radius: 8px; margin: 20px 0; border-left: 4px solid #3b82f6;">
      <h2 style="color: #1a1a2e; margin-top: 0;">Detalles del Vale:</h2>
      <ul style="list-style: none; padding: 0;">
        <li style="padding: 8px 0;"><strong>Código:</strong> <span style="background-color: #3b82f6; color: white; padding: 5px 10px; border-radius: 4px;">{{voucherCode}}</span></li>
        <li style="padding: 8px 0;"><strong>Valor:</strong> {{amount}}</li>
        <li style="padding: 8px 0;"><strong>Válido hasta:</strong> {{expiryDate}}</li>
        {{#recipientName}}<li style="padding: 8px 0;"><strong>Para:</strong> {{recipientName}}</li>{{/recipientName}}
        {{#personalMessage}}<li style="padding: 8px 0;"><strong>Mensaje:</strong> "{{personalMessage}}"</li>{{/personalMessage}}
      </ul>
    </div>
    <p style="font-size: 14px; color: #166534;">El vale regalo está adjunto a este email como archivo PDF.</p>
    <p style="font-size: 16px; color: #333; margin-top: 30px;">¡Gracias por tu compra!</p>
  </div>
</body>
</html>`
)
