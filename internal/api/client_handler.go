package api

import (
	"alcyxob/motion-coach/internal/service"
	"alcyxob/motion-coach/internal/validation"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ClientHandler serves the athletes followed by a coach.
type ClientHandler struct {
	clientService service.ClientService
}

func NewClientHandler(clientService service.ClientService) *ClientHandler {
	return &ClientHandler{clientService: clientService}
}

// CreateClient godoc
// @Summary Add a client
// @Tags Clients
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param client body validation.ClientInput true "Client details"
// @Success 201 {object} domain.Client
// @Failure 400 {object} gin.H "Invalid input"
// @Router /clients [post]
func (h *ClientHandler) CreateClient(c *gin.Context) {
	subject, ok := mustSubject(c)
	if !ok {
		return
	}
	var req validation.ClientInput
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid JSON body")
		return
	}
	client, err := h.clientService.CreateClient(c.Request.Context(), subject, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, client)
}

// ListClients godoc
// @Summary List my clients
// @Description Coaches see their clients, admins see every client.
// @Tags Clients
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.Client
// @Router /clients [get]
func (h *ClientHandler) ListClients(c *gin.Context) {
	subject, ok := mustSubject(c)
	if !ok {
		return
	}
	clients, err := h.clientService.ListClients(c.Request.Context(), subject)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, clients)
}

// GetClient godoc
// @Summary Get one client
// @Tags Clients
// @Produce json
// @Security BearerAuth
// @Param id path string true "Client ObjectID Hex"
// @Success 200 {object} domain.Client
// @Failure 403 {object} gin.H "Client of another coach"
// @Failure 404 {object} gin.H "Client not found"
// @Router /clients/{id} [get]
func (h *ClientHandler) GetClient(c *gin.Context) {
	subject, ok := mustSubject(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}
	client, err := h.clientService.GetClient(c.Request.Context(), subject, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

// UpdateClient godoc
// @Summary Replace a client
// @Tags Clients
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Client ObjectID Hex"
// @Param client body validation.ClientInput true "Client details"
// @Success 200 {object} domain.Client
// @Router /clients/{id} [put]
func (h *ClientHandler) UpdateClient(c *gin.Context) {
	subject, ok := mustSubject(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}
	var req validation.ClientInput
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid JSON body")
		return
	}
	client, err := h.clientService.UpdateClient(c.Request.Context(), subject, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}
