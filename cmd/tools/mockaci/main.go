// Local stand-in for the ACI payment API. Serves the handful of endpoints
// the gateway calls, keeps checkouts in memory and lets tests force any
// result code via customParameters[forceResultCode].
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	codeSuccess   = "000.000.000"
	codePending   = "000.200.000"
	codeRejected  = "800.100.151"
	codeCancelled = "100.396.101"
)

type checkoutRecord struct {
	ID            string
	Amount        string
	Currency      string
	PaymentType   string
	MerchantTxnID string
	ForceCode     string
	CreatedAt     time.Time
}

type store struct {
	mu        sync.Mutex
	checkouts map[string]checkoutRecord
	payments  map[string]string // payment ID -> result code
}

func newStore() *store {
	return &store{
		checkouts: make(map[string]checkoutRecord),
		payments:  make(map[string]string),
	}
}

func main() {
	addr := flag.String("addr", ":9090", "Listen address")
	token := flag.String("token", "", "Expected bearer token (empty disables the check)")
	flag.Parse()

	s := newStore()

	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	auth := func(c *gin.Context) {
		if *token != "" && c.GetHeader("Authorization") != "Bearer "+*token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, resultBody("800.900.300", "invalid authentication"))
			return
		}
		c.Next()
	}
	r.Use(auth)

	r.POST("/v1/checkouts", s.createCheckout)
	r.POST("/v1/checkouts/:id", s.updateCheckout)
	r.GET("/v1/checkouts/:id/payment", s.checkoutPayment)
	r.GET("/v1/query/:id", s.queryPayment)
	r.POST("/v1/payments/:id", s.backofficePayment)
	r.POST("/v1/registrations", s.createRegistration)
	r.GET("/v1/registrations/:id", s.registrationStatus)

	log.Printf("mock ACI listening on %s", *addr)
	if err := r.Run(*addr); err != nil {
		log.Fatal(err)
	}
}

func resultBody(code, description string) gin.H {
	return gin.H{
		"result": gin.H{"code": code, "description": description},
	}
}

func (s *store) createCheckout(c *gin.Context) {
	rec := checkoutRecord{
		ID:            "cko_" + uuid.NewString(),
		Amount:        c.PostForm("amount"),
		Currency:      c.PostForm("currency"),
		PaymentType:   c.PostForm("paymentType"),
		MerchantTxnID: c.PostForm("merchantTransactionId"),
		ForceCode:     c.PostForm("customParameters[forceResultCode]"),
		CreatedAt:     time.Now(),
	}

	s.mu.Lock()
	s.checkouts[rec.ID] = rec
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"id":        rec.ID,
		"result":    gin.H{"code": "000.200.100", "description": "successfully created checkout"},
		"timestamp": time.Now().UTC().Format("2006-01-02 15:04:05-0700"),
	})
}

func (s *store) updateCheckout(c *gin.Context) {
	id := c.Param("id")

	s.mu.Lock()
	rec, ok := s.checkouts[id]
	if ok {
		if v := c.PostForm("amount"); v != "" {
			rec.Amount = v
		}
		if v := c.PostForm("merchantTransactionId"); v != "" {
			rec.MerchantTxnID = v
		}
		if v := c.PostForm("customParameters[forceResultCode]"); v != "" {
			rec.ForceCode = v
		}
		s.checkouts[id] = rec
	}
	s.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, resultBody("200.300.404", "invalid checkout id"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":        id,
		"result":    gin.H{"code": "000.200.101", "description": "successfully updated checkout"},
		"timestamp": time.Now().UTC().Format("2006-01-02 15:04:05-0700"),
	})
}

// checkoutPayment is the resourcePath target polled after the shopper
// returns from the hosted page.
func (s *store) checkoutPayment(c *gin.Context) {
	id := c.Param("id")

	s.mu.Lock()
	rec, ok := s.checkouts[id]
	s.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, resultBody("200.300.404", "invalid checkout id"))
		return
	}

	code := rec.ForceCode
	if code == "" {
		code = codeSuccess
	}

	paymentID := "pay_" + uuid.NewString()
	s.mu.Lock()
	s.payments[paymentID] = code
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"id":                    paymentID,
		"paymentType":           rec.PaymentType,
		"paymentBrand":          "VISA",
		"amount":                rec.Amount,
		"currency":              rec.Currency,
		"merchantTransactionId": rec.MerchantTxnID,
		"result":                gin.H{"code": code, "description": describe(code)},
		"card": gin.H{
			"holder":      "Jane Jones",
			"last4Digits": "4242",
			"expiryMonth": "05",
			"expiryYear":  "2034",
		},
		"timestamp": time.Now().UTC().Format("2006-01-02 15:04:05-0700"),
	})
}

func (s *store) queryPayment(c *gin.Context) {
	id := c.Param("id")

	s.mu.Lock()
	code, ok := s.payments[id]
	s.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, resultBody("700.400.580", "cannot find transaction"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":        id,
		"result":    gin.H{"code": code, "description": describe(code)},
		"timestamp": time.Now().UTC().Format("2006-01-02 15:04:05-0700"),
	})
}

// backofficePayment serves capture, refund and reversal requests.
func (s *store) backofficePayment(c *gin.Context) {
	refID := c.Param("id")
	paymentType := c.PostForm("paymentType")

	s.mu.Lock()
	_, known := s.payments[refID]
	s.mu.Unlock()

	if !known {
		c.JSON(http.StatusNotFound, resultBody("700.400.580", "cannot find transaction"))
		return
	}

	newID := fmt.Sprintf("%s_%s", paymentType, uuid.NewString())
	s.mu.Lock()
	s.payments[newID] = codeSuccess
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"id":           newID,
		"paymentType":  paymentType,
		"referencedId": refID,
		"amount":       c.PostForm("amount"),
		"currency":     c.PostForm("currency"),
		"result":       gin.H{"code": codeSuccess, "description": describe(codeSuccess)},
		"timestamp":    time.Now().UTC().Format("2006-01-02 15:04:05-0700"),
	})
}

func (s *store) createRegistration(c *gin.Context) {
	id := "reg_" + uuid.NewString()
	s.mu.Lock()
	s.payments[id] = codeSuccess
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"id":     id,
		"result": gin.H{"code": "000.200.100", "description": "successfully created checkout"},
	})
}

func (s *store) registrationStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"id":             "pay_" + uuid.NewString(),
		"registrationId": "reg_" + uuid.NewString(),
		"paymentBrand":   "VISA",
		"result":         gin.H{"code": codeSuccess, "description": describe(codeSuccess)},
		"card": gin.H{
			"holder":      "Jane Jones",
			"last4Digits": "4242",
			"expiryMonth": "05",
			"expiryYear":  "2034",
		},
	})
}

func describe(code string) string {
	switch code {
	case codeSuccess:
		return "Transaction succeeded"
	case codePending:
		return "Transaction pending"
	case codeCancelled:
		return "Cancelled by user"
	case codeRejected:
		return "transaction declined (invalid card)"
	default:
		return "see result code"
	}
}
