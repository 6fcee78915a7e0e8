package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mystery-events/voucherd/internal/consistency"
	"github.com/mystery-events/voucherd/internal/settings"
)

// VoucherHealthHandler exposes the consistency check and repair pass.
type VoucherHealthHandler struct {
	repairer      *consistency.Repairer
	store         *settings.Store
	defaultWindow int
}

// NewVoucherHealthHandler wires the health handler.
func NewVoucherHealthHandler(repairer *consistency.Repairer, store *settings.Store, defaultWindow int) *VoucherHealthHandler {
	if store == nil {
		store = settings.NewStore()
	}
	return &VoucherHealthHandler{repairer: repairer, store: store, defaultWindow: defaultWindow}
}

// Run scans recent vouchers for payment-state drift. With fix=true the
// repairable findings are corrected in the same pass. With voucher_id the
// scan narrows to a single voucher regardless of the window.
func (h *VoucherHealthHandler) Run(c *gin.Context) {
	fix := c.Query("fix") == "true" || c.Query("fix") == "1"
	voucherID := strings.TrimSpace(c.Query("voucher_id"))

	if voucherID != "" {
		var (
			detail    consistency.VoucherReport
			errHealth error
		)
		if fix {
			detail, errHealth = h.repairer.RepairOne(c.Request.Context(), voucherID)
		} else {
			detail, errHealth = h.repairer.CheckOne(c.Request.Context(), voucherID)
		}
		if errHealth != nil {
			if errors.Is(errHealth, consistency.ErrVoucherNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "health check failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"fix": fix, "voucher": detail})
		return
	}

	window := h.store.ScanWindow(h.defaultWindow)
	if raw := strings.TrimSpace(c.Query("window")); raw != "" {
		parsed, errParse := strconv.Atoi(raw)
		if errParse != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid window"})
			return
		}
		window = parsed
	}

	var (
		report    consistency.Report
		errHealth error
	)
	if fix {
		report, errHealth = h.repairer.Repair(c.Request.Context(), window)
	} else {
		report, errHealth = h.repairer.Check(c.Request.Context(), window)
	}
	if errHealth != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "health check failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"fix": fix, "window": window, "report": report})
}
