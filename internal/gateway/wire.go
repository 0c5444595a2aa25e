package gateway

import "github.com/shopspring/decimal"

const (
	pathDirectPayment   = "/payment/auth"
	pathThreeDsInit     = "/payment/3dsecure/initialize"
	pathThreeDsAuth     = "/payment/3dsecure/auth"
	pathCheckoutForm    = "/payment/iyzipos/checkoutform/initialize/auth/ecom"
	pathWalletInit      = "/payment/pay-with-iyzico/initialize"
	pathPaymentDetail   = "/payment/detail"
	pathInstallmentInfo = "/payment/iyzipos/installment"

	statusSuccess = "success"
)

type paymentCard struct {
	CardHolderName string `json:"cardHolderName"`
	CardNumber     string `json:"cardNumber"`
	ExpireMonth    string `json:"expireMonth"`
	ExpireYear     string `json:"expireYear"`
	CVC            string `json:"cvc"`
	RegisterCard   int    `json:"registerCard"`
}

type buyer struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Surname             string `json:"surname"`
	GSMNumber           string `json:"gsmNumber,omitempty"`
	Email               string `json:"email"`
	IdentityNumber      string `json:"identityNumber"`
	RegistrationAddress string `json:"registrationAddress"`
	IP                  string `json:"ip"`
	City                string `json:"city"`
	Country             string `json:"country"`
	ZipCode             string `json:"zipCode,omitempty"`
}

type address struct {
	ContactName string `json:"contactName"`
	City        string `json:"city"`
	Country     string `json:"country"`
	Address     string `json:"address"`
	ZipCode     string `json:"zipCode,omitempty"`
}

type basketItem struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Category1 string          `json:"category1"`
	ItemType  string          `json:"itemType"`
	Price     decimal.Decimal `json:"price"`
}

type paymentRequest struct {
	Locale              string          `json:"locale,omitempty"`
	ConversationID      string          `json:"conversationId"`
	Price               decimal.Decimal `json:"price"`
	PaidPrice           decimal.Decimal `json:"paidPrice"`
	Currency            string          `json:"currency"`
	Installment         int             `json:"installment,omitempty"`
	BasketID            string          `json:"basketId"`
	PaymentChannel      string          `json:"paymentChannel"`
	PaymentGroup        string          `json:"paymentGroup"`
	PaymentCard         *paymentCard    `json:"paymentCard,omitempty"`
	Buyer               buyer           `json:"buyer"`
	ShippingAddress     address         `json:"shippingAddress"`
	BillingAddress      address         `json:"billingAddress"`
	BasketItems         []basketItem    `json:"basketItems"`
	CallbackURL         string          `json:"callbackUrl,omitempty"`
	EnabledInstallments []int           `json:"enabledInstallments,omitempty"`
}

type threeDsAuthRequest struct {
	Locale           string `json:"locale,omitempty"`
	ConversationID   string `json:"conversationId"`
	PaymentID        string `json:"paymentId"`
	ConversationData string `json:"conversationData,omitempty"`
}

type retrieveRequest struct {
	Locale         string `json:"locale,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	PaymentID      string `json:"paymentId"`
}

type installmentRequest struct {
	Locale         string          `json:"locale,omitempty"`
	ConversationID string          `json:"conversationId"`
	BinNumber      string          `json:"binNumber"`
	Price          decimal.Decimal `json:"price"`
}

type itemTransaction struct {
	ItemID               string          `json:"itemId"`
	PaymentTransactionID string          `json:"paymentTransactionId"`
	TransactionStatus    int             `json:"transactionStatus"`
	Price                decimal.Decimal `json:"price"`
	PaidPrice            decimal.Decimal `json:"paidPrice"`
	MerchantPayoutAmount decimal.Decimal `json:"merchantPayoutAmount"`
}

type paymentResponse struct {
	Status         string `json:"status"`
	ErrorCode      string `json:"errorCode"`
	ErrorMessage   string `json:"errorMessage"`
	ErrorGroup     string `json:"errorGroup"`
	Locale         string `json:"locale"`
	SystemTime     int64  `json:"systemTime"`
	ConversationID string `json:"conversationId"`

	Price          decimal.Decimal   `json:"price"`
	PaidPrice      decimal.Decimal   `json:"paidPrice"`
	Installment    int               `json:"installment"`
	PaymentID      string            `json:"paymentId"`
	PaymentStatus  string            `json:"paymentStatus"`
	FraudStatus    int               `json:"fraudStatus"`
	Currency       string            `json:"currency"`
	BasketID       string            `json:"basketId"`
	CardType       string            `json:"cardType"`
	CardFamily     string            `json:"cardFamily"`
	LastFourDigits string            `json:"lastFourDigits"`
	Transactions   []itemTransaction `json:"itemTransactions"`

	ThreeDSHTMLContent string `json:"threeDSHtmlContent"`

	Token                string `json:"token"`
	TokenExpireTime      int    `json:"tokenExpireTime"`
	CheckoutFormContent  string `json:"checkoutFormContent"`
	PaymentPageURL       string `json:"paymentPageUrl"`
	PayWithIyzicoPageURL string `json:"payWithIyzicoPageUrl"`
}

type installmentPrice struct {
	InstallmentNumber int             `json:"installmentNumber"`
	TotalPrice        decimal.Decimal `json:"totalPrice"`
	InstallmentPrice  decimal.Decimal `json:"installmentPrice"`
}

type installmentDetail struct {
	BinNumber         string             `json:"binNumber"`
	Price             decimal.Decimal    `json:"price"`
	CardType          string             `json:"cardType"`
	CardAssociation   string             `json:"cardAssociation"`
	CardFamilyName    string             `json:"cardFamilyName"`
	Force3DS          int                `json:"force3ds"`
	BankCode          int                `json:"bankCode"`
	BankName          string             `json:"bankName"`
	InstallmentPrices []installmentPrice `json:"installmentPrices"`
}

type installmentResponse struct {
	Status             string              `json:"status"`
	ErrorCode          string              `json:"errorCode"`
	ErrorMessage       string              `json:"errorMessage"`
	ConversationID     string              `json:"conversationId"`
	InstallmentDetails []installmentDetail `json:"installmentDetails"`
}
