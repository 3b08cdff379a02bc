package handler

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/CharlyTlelo/abc-exprezo-contratos/model"
	"github.com/CharlyTlelo/abc-exprezo-contratos/service"
	"github.com/gin-gonic/gin"
)

type ContractHandler struct {
	workflow *service.Workflow
}

func NewContractHandler(workflow *service.Workflow) *ContractHandler {
	return &ContractHandler{workflow: workflow}
}

type CreateContractRequest struct {
	Folio       string `json:"folio"`
	Name        string `json:"contrato" binding:"required"`
	Description string `json:"descripcion"`
}

type RenameContractRequest struct {
	Folio string `json:"folio" binding:"required"`
}

// List returns every contract, optionally filtered by ?estatus=
func (h *ContractHandler) List(c *gin.Context) {
	var filter *model.Status
	if label := c.Query("estatus"); label != "" {
		status, err := model.ParseStatus(label)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter = &status
	}

	contracts, err := h.workflow.ListContracts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	result := make([]model.Contract, 0, len(contracts))
	for _, contract := range contracts {
		if filter == nil || contract.Status == *filter {
			result = append(result, contract)
		}
	}

	c.JSON(http.StatusOK, gin.H{"contracts": result})
}

// Create registers a new contract
func (h *ContractHandler) Create(c *gin.Context) {
	var req CreateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	contract, err := h.workflow.CreateContract(c.Request.Context(), model.Contract{
		Folio:       req.Folio,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, contract)
}

// Get returns a single contract
func (h *ContractHandler) Get(c *gin.Context) {
	contract, err := h.workflow.GetContract(c.Request.Context(), c.Param("folio"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, contract)
}

// Update applies a partial update of name and description
func (h *ContractHandler) Update(c *gin.Context) {
	var patch service.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	contract, err := h.workflow.UpdateContract(c.Request.Context(), c.Param("folio"), patch)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, contract)
}

// Rename moves a contract to a new folio
func (h *ContractHandler) Rename(c *gin.Context) {
	var req RenameContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	contract, err := h.workflow.RenameContract(c.Request.Context(), c.Param("folio"), req.Folio)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, contract)
}

// Delete deletes a contract
func (h *ContractHandler) Delete(c *gin.Context) {
	if err := h.workflow.DeleteContract(c.Request.Context(), c.Param("folio")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Contract deleted"})
}

// Progress returns the per-section completion of a contract
func (h *ContractHandler) Progress(c *gin.Context) {
	progress, err := h.workflow.Progress(c.Request.Context(), c.Param("folio"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

// Export downloads every document of a contract as a ZIP
func (h *ContractHandler) Export(c *gin.Context) {
	folio := c.Param("folio")

	var buf bytes.Buffer
	if _, err := h.workflow.Export(c.Request.Context(), folio, &buf); err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, service.ExportName(folio)))
	c.Data(http.StatusOK, "application/zip", buf.Bytes())
}
