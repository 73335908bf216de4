package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/MarkoPoloResearchLab/internboard/internal/board"
	"github.com/MarkoPoloResearchLab/internboard/internal/resume"
	"github.com/MarkoPoloResearchLab/internboard/pkg/credits"
	"github.com/gin-gonic/gin"
)

func (handler *httpHandler) handleListInternships(ctx *gin.Context) {
	var query internshipQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		invalidPayload(ctx, err)
		return
	}
	page, err := board.NewPage(query.Skip, query.Limit)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	activeOnly := true
	if query.ActiveOnly != nil {
		activeOnly = *query.ActiveOnly
	}
	internships, err := handler.board.ListInternships(ctx.Request.Context(), query.Query, activeOnly, page)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"internships": newInternshipPayloads(internships)})
}

func (handler *httpHandler) handleGetInternship(ctx *gin.Context) {
	internship, err := handler.board.GetInternship(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newInternshipPayload(internship))
}

func (handler *httpHandler) handleCreateInternship(ctx *gin.Context) {
	var request internshipRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		invalidPayload(ctx, err)
		return
	}
	internship, err := handler.board.CreateInternship(ctx.Request.Context(), currentAccount(ctx), request.input())
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, newInternshipPayload(internship))
}

func (handler *httpHandler) handleUpdateInternship(ctx *gin.Context) {
	var request internshipRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		invalidPayload(ctx, err)
		return
	}
	internship, err := handler.board.UpdateInternship(ctx.Request.Context(), currentAccount(ctx), ctx.Param("id"), request.input())
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newInternshipPayload(internship))
}

func (handler *httpHandler) handleDeleteInternship(ctx *gin.Context) {
	if err := handler.board.DeleteInternship(ctx.Request.Context(), currentAccount(ctx), ctx.Param("id")); err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (handler *httpHandler) handleEmployerInternships(ctx *gin.Context) {
	page, ok := handler.bindPage(ctx)
	if !ok {
		return
	}
	internships, err := handler.board.EmployerInternships(ctx.Request.Context(), currentAccount(ctx), page)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"internships": newInternshipPayloads(internships)})
}

func (handler *httpHandler) handleApply(ctx *gin.Context) {
	var request applyRequest
	if err := ctx.ShouldBindJSON(&request); err != nil && !errors.Is(err, io.EOF) {
		invalidPayload(ctx, err)
		return
	}
	application, err := handler.board.Apply(ctx.Request.Context(), currentAccount(ctx), ctx.Param("id"), request.CoverLetter)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, newApplicationPayload(application))
}

func (handler *httpHandler) handleStudentApplications(ctx *gin.Context) {
	page, ok := handler.bindPage(ctx)
	if !ok {
		return
	}
	applications, err := handler.board.StudentApplications(ctx.Request.Context(), currentAccount(ctx), page)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"applications": newApplicationPayloads(applications)})
}

func (handler *httpHandler) handleApplicants(ctx *gin.Context) {
	page, ok := handler.bindPage(ctx)
	if !ok {
		return
	}
	applications, err := handler.board.Applicants(ctx.Request.Context(), currentAccount(ctx), ctx.Param("id"), page)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"applications": newApplicationPayloads(applications)})
}

func (handler *httpHandler) handleUpdateApplicationStatus(ctx *gin.Context) {
	var request statusRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		invalidPayload(ctx, err)
		return
	}
	application, err := handler.board.UpdateApplicationStatus(ctx.Request.Context(), currentAccount(ctx), ctx.Param("id"), request.Status)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newApplicationPayload(application))
}

func (handler *httpHandler) handleHiredInterns(ctx *gin.Context) {
	page, ok := handler.bindPage(ctx)
	if !ok {
		return
	}
	applications, err := handler.board.HiredInterns(ctx.Request.Context(), currentAccount(ctx), page)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"applications": newApplicationPayloads(applications)})
}

func (handler *httpHandler) handleStudentProfile(ctx *gin.Context) {
	profile, err := handler.board.StudentProfile(ctx.Request.Context(), currentAccount(ctx))
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newStudentProfilePayload(profile))
}

func (handler *httpHandler) handleUpdateStudentProfile(ctx *gin.Context) {
	var request studentProfileRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		invalidPayload(ctx, err)
		return
	}
	profile, err := handler.board.UpdateStudentProfile(ctx.Request.Context(), currentAccount(ctx), board.StudentProfileUpdate{
		Education:    request.Education,
		Skills:       request.Skills,
		Experience:   request.Experience,
		ResumeURL:    request.ResumeURL,
		PortfolioURL: request.PortfolioURL,
	})
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newStudentProfilePayload(profile))
}

// handleResume stores the submitted résumé and answers with the printable HTML rendering.
func (handler *httpHandler) handleResume(ctx *gin.Context) {
	var document resume.Document
	if err := ctx.ShouldBindJSON(&document); err != nil {
		invalidPayload(ctx, err)
		return
	}
	page, err := handler.resumes.Render(document)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	encoded, err := resume.Encode(document)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	if err := handler.board.SaveResume(ctx.Request.Context(), currentAccount(ctx), encoded); err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.Data(http.StatusOK, "text/html; charset=utf-8", page)
}

func (handler *httpHandler) handleApplicantProfile(ctx *gin.Context) {
	studentID, ok := handler.accountIDParam(ctx)
	if !ok {
		return
	}
	profile, err := handler.board.ApplicantProfile(ctx.Request.Context(), currentAccount(ctx), studentID)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newStudentProfilePayload(profile))
}

func (handler *httpHandler) handleEmployerProfile(ctx *gin.Context) {
	profile, err := handler.board.EmployerProfile(ctx.Request.Context(), currentAccount(ctx))
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newEmployerProfilePayload(profile))
}

func (handler *httpHandler) handleUpdateEmployerProfile(ctx *gin.Context) {
	var request employerProfileRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		invalidPayload(ctx, err)
		return
	}
	profile, err := handler.board.UpdateEmployerProfile(ctx.Request.Context(), currentAccount(ctx), board.EmployerProfile{
		CompanyName:        request.CompanyName,
		CompanyDescription: request.CompanyDescription,
		Website:            request.Website,
		Industry:           request.Industry,
		CompanyLogoURL:     request.CompanyLogoURL,
	})
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newEmployerProfilePayload(profile))
}

func (handler *httpHandler) handleAdminListUsers(ctx *gin.Context) {
	var query userQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		invalidPayload(ctx, err)
		return
	}
	page, err := board.NewPage(query.Skip, query.Limit)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	filter := board.UserFilter{Page: page}
	if query.Role != "" {
		role, err := credits.ParseRole(query.Role)
		if err != nil {
			handler.writeError(ctx, err)
			return
		}
		filter.Role = &role
	}
	users, err := handler.board.ListUsers(ctx.Request.Context(), currentAccount(ctx), filter)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"users": newUserPayloads(users)})
}

func (handler *httpHandler) handleAdminGetUser(ctx *gin.Context) {
	userID, ok := handler.accountIDParam(ctx)
	if !ok {
		return
	}
	user, err := handler.board.GetUser(ctx.Request.Context(), currentAccount(ctx), userID)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newUserPayload(user))
}

func (handler *httpHandler) handleAdminUpdateUser(ctx *gin.Context) {
	userID, ok := handler.accountIDParam(ctx)
	if !ok {
		return
	}
	var request userUpdateRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		invalidPayload(ctx, err)
		return
	}
	update, err := request.update()
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	user, err := handler.board.UpdateUser(ctx.Request.Context(), currentAccount(ctx), userID, update)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newUserPayload(user))
}

func (handler *httpHandler) handleAdminDeleteUser(ctx *gin.Context) {
	userID, ok := handler.accountIDParam(ctx)
	if !ok {
		return
	}
	if err := handler.board.DeleteUser(ctx.Request.Context(), currentAccount(ctx), userID); err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (handler *httpHandler) handleAdminInternships(ctx *gin.Context) {
	page, ok := handler.bindPage(ctx)
	if !ok {
		return
	}
	internships, err := handler.board.AdminInternships(ctx.Request.Context(), currentAccount(ctx), page)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"internships": newInternshipPayloads(internships)})
}

func (handler *httpHandler) handleAdminDeleteInternship(ctx *gin.Context) {
	if err := handler.board.AdminDeleteInternship(ctx.Request.Context(), currentAccount(ctx), ctx.Param("id")); err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (handler *httpHandler) bindPage(ctx *gin.Context) (board.Page, bool) {
	var query pageQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		invalidPayload(ctx, err)
		return board.Page{}, false
	}
	page, err := board.NewPage(query.Skip, query.Limit)
	if err != nil {
		handler.writeError(ctx, err)
		return board.Page{}, false
	}
	return page, true
}

func (handler *httpHandler) accountIDParam(ctx *gin.Context) (credits.AccountID, bool) {
	accountID, err := credits.NewAccountID(ctx.Param("id"))
	if err != nil {
		handler.writeError(ctx, fmt.Errorf("user id: %w", err))
		return credits.AccountID{}, false
	}
	return accountID, true
}
