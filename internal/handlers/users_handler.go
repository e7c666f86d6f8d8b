package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geoschem-cloud/simulation-workflow/internal/apperr"
	"github.com/geoschem-cloud/simulation-workflow/internal/userprofile"
	"github.com/geoschem-cloud/simulation-workflow/internal/validation"
)

// RegisterUserRoutes registers the admin user-management CRUD over the
// identity provider, plus the local profile read.
func RegisterUserRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()
	admin := userprofile.NewAdmin(cfg.Cognito, cfg.App.UserPoolID)
	profiles := userprofile.NewStore(cfg.DynamoDB, cfg.App.UserProfilesTable)

	r.POST("/users", func(c *gin.Context) {
		var req validation.CreateUserRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		u, err := admin.CreateUser(c.Request.Context(), req.Username, req.Email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, apperr.Envelope(err, "failed to create user"))
			return
		}
		c.JSON(http.StatusCreated, u)
	})

	r.GET("/users", func(c *gin.Context) {
		users, err := admin.ListUsers(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, apperr.Envelope(err, "failed to list users"))
			return
		}
		c.JSON(http.StatusOK, gin.H{"users": users})
	})

	r.GET("/users/:username", func(c *gin.Context) {
		ctx := c.Request.Context()
		username := c.Param("username")

		u, err := admin.GetUser(ctx, username)
		if err != nil {
			c.JSON(http.StatusInternalServerError, apperr.Envelope(err, "failed to fetch user"))
			return
		}
		if u == nil {
			c.JSON(http.StatusNotFound, apperr.Envelope(apperr.ErrNotFound, "user not found"))
			return
		}

		// profile is best-effort; the identity provider remains the
		// source of truth for the user itself
		profile, err := profiles.Get(ctx, username)
		if err != nil {
			profile = nil
		}
		c.JSON(http.StatusOK, gin.H{"user": u, "profile": profile})
	})

	r.PUT("/users/:username", func(c *gin.Context) {
		var req validation.UpdateUserRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		if err := admin.UpdateUser(c.Request.Context(), c.Param("username"), req.Attributes); err != nil {
			c.JSON(http.StatusInternalServerError, apperr.Envelope(err, "failed to update user"))
			return
		}
		c.Status(http.StatusNoContent)
	})

	r.DELETE("/users/:username", func(c *gin.Context) {
		if err := admin.DeleteUser(c.Request.Context(), c.Param("username")); err != nil {
			c.JSON(http.StatusInternalServerError, apperr.Envelope(err, "failed to delete user"))
			return
		}
		c.Status(http.StatusNoContent)
	})
}
