package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"bus_tracker_go_backend/internal/auth"
	apperrors "bus_tracker_go_backend/internal/errors"
	"bus_tracker_go_backend/internal/models"
	"bus_tracker_go_backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type LocationService interface {
	SaveLocation(ctx context.Context, actorID uuid.UUID, role models.Role, busID uuid.UUID, lat, lng float64) (*models.BusLocation, error)
	LatestLocation(ctx context.Context, actorID uuid.UUID, role models.Role, busID uuid.UUID) (*models.BusLocation, error)
	BusStatus(ctx context.Context, actorID uuid.UUID, role models.Role, busID uuid.UUID) (*services.BusPresence, error)
}

type RequestService interface {
	CreateRequest(ctx context.Context, in services.CreateRequestInput) (*models.Request, error)
	ReviewRequest(ctx context.Context, reviewerID, requestID uuid.UUID, decision models.RequestStatus) (*models.Request, error)
	ListStudentRequests(ctx context.Context, actorID uuid.UUID, role models.Role, studentID uuid.UUID) ([]models.Request, error)
}

func SetupRoutes(r *gin.Engine, verifier *auth.TokenVerifier, locationService LocationService, requestService RequestService) {
	api := r.Group("/api", auth.AuthMiddleware(verifier))
	{
		api.POST("/buses/:bus_id/location", auth.RequireRole(models.RoleSupervisor, models.RoleAdmin), postLocationHandler(locationService))
		api.GET("/buses/:bus_id/location", getLocationHandler(locationService))
		api.GET("/buses/:bus_id/status", getBusStatusHandler(locationService))

		api.POST("/requests/:kind", auth.RequireRole(models.RoleParent), createRequestHandler(requestService))
		api.PATCH("/requests/:request_id/review", auth.RequireRole(models.RoleSupervisor), reviewRequestHandler(requestService))
		api.GET("/students/:student_id/requests", listStudentRequestsHandler(requestService))
	}
}

func postLocationHandler(locationService LocationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, busID, ok := identityAndID(c, "bus_id")
		if !ok {
			return
		}

		var body struct {
			Latitude  *float64 `json:"latitude" binding:"required"`
			Longitude *float64 `json:"longitude" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			apperrors.HandleError(c, apperrors.New400Error("latitude and longitude are required"))
			return
		}

		sample, err := locationService.SaveLocation(c.Request.Context(), identity.UserID, identity.Role, busID, *body.Latitude, *body.Longitude)
		if err != nil {
			apperrors.HandleError(c, mapServiceError(err))
			return
		}
		c.JSON(http.StatusCreated, sample)
	}
}

func getLocationHandler(locationService LocationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, busID, ok := identityAndID(c, "bus_id")
		if !ok {
			return
		}

		latest, err := locationService.LatestLocation(c.Request.Context(), identity.UserID, identity.Role, busID)
		if err != nil {
			apperrors.HandleError(c, mapServiceError(err))
			return
		}
		if latest == nil {
			apperrors.HandleError(c, apperrors.New404Error("No location reported for this bus"))
			return
		}
		c.JSON(http.StatusOK, latest)
	}
}

func getBusStatusHandler(locationService LocationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, busID, ok := identityAndID(c, "bus_id")
		if !ok {
			return
		}

		status, err := locationService.BusStatus(c.Request.Context(), identity.UserID, identity.Role, busID)
		if err != nil {
			apperrors.HandleError(c, mapServiceError(err))
			return
		}
		c.JSON(http.StatusOK, status)
	}
}

func createRequestHandler(requestService RequestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := auth.IdentityFrom(c)
		if !ok {
			apperrors.HandleError(c, apperrors.New401Error())
			return
		}

		var body struct {
			StudentID string `json:"studentId" binding:"required"`
			Type      string `json:"type" binding:"required"`
			Date      string `json:"date" binding:"required"`
			Reason    string `json:"reason"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			apperrors.HandleError(c, apperrors.New400Error("studentId, type and date are required"))
			return
		}
		studentID, err := uuid.Parse(body.StudentID)
		if err != nil {
			apperrors.HandleError(c, apperrors.New400Error("Invalid studentId"))
			return
		}

		req, err := requestService.CreateRequest(c.Request.Context(), services.CreateRequestInput{
			Kind:      models.RequestKind(strings.ToUpper(c.Param("kind"))),
			StudentID: studentID,
			ParentID:  identity.UserID,
			Type:      strings.ToUpper(body.Type),
			Date:      body.Date,
			Reason:    body.Reason,
		})
		if err != nil {
			apperrors.HandleError(c, mapServiceError(err))
			return
		}
		c.JSON(http.StatusCreated, req)
	}
}

func reviewRequestHandler(requestService RequestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, requestID, ok := identityAndID(c, "request_id")
		if !ok {
			return
		}

		var body struct {
			Decision string `json:"decision" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			apperrors.HandleError(c, apperrors.New400Error("decision is required"))
			return
		}

		req, err := requestService.ReviewRequest(c.Request.Context(), identity.UserID, requestID, models.RequestStatus(strings.ToUpper(body.Decision)))
		if err != nil {
			apperrors.HandleError(c, mapServiceError(err))
			return
		}
		c.JSON(http.StatusOK, req)
	}
}

func listStudentRequestsHandler(requestService RequestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, studentID, ok := identityAndID(c, "student_id")
		if !ok {
			return
		}

		reqs, err := requestService.ListStudentRequests(c.Request.Context(), identity.UserID, identity.Role, studentID)
		if err != nil {
			apperrors.HandleError(c, mapServiceError(err))
			return
		}
		if reqs == nil {
			reqs = []models.Request{}
		}
		c.JSON(http.StatusOK, gin.H{"requests": reqs})
	}
}

// identityAndID reads the caller and a uuid path parameter. It writes the
// error response itself and reports false when either is unusable.
func identityAndID(c *gin.Context, param string) (*auth.Identity, uuid.UUID, bool) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		apperrors.HandleError(c, apperrors.New401Error())
		return nil, uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		apperrors.HandleError(c, apperrors.New400Error("Invalid "+param))
		return nil, uuid.Nil, false
	}
	return identity, id, true
}

func mapServiceError(err error) error {
	switch {
	case errors.Is(err, services.ErrDuplicateRequest):
		return apperrors.New409Error(apperrors.CodeDuplicateRequest, err.Error(), err)
	case errors.Is(err, services.ErrRequestAlreadyReviewed):
		return apperrors.New409Error(apperrors.CodeAlreadyReviewed, err.Error(), err)
	case errors.Is(err, services.ErrInvalidCoordinates),
		errors.Is(err, services.ErrInvalidRequestKind),
		errors.Is(err, services.ErrInvalidRequestType),
		errors.Is(err, services.ErrInvalidDate),
		errors.Is(err, services.ErrInvalidDecision):
		return apperrors.New400Error(err.Error())
	case errors.Is(err, services.ErrBusNotAssigned),
		errors.Is(err, services.ErrNotStudentParent),
		errors.Is(err, services.ErrNotStudentSupervisor):
		return apperrors.New403Error()
	case errors.Is(err, services.ErrBusNotFound),
		errors.Is(err, services.ErrStudentNotFound),
		errors.Is(err, services.ErrRequestNotFound):
		return apperrors.New404Error(err.Error())
	default:
		return apperrors.New500Error(err)
	}
}
