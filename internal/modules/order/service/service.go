package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"edvora.com/lms/internal/entity"
	courseRepo "edvora.com/lms/internal/modules/course/repository"
	notification "edvora.com/lms/internal/modules/notification/service"
	orderDto "edvora.com/lms/internal/modules/order/dto"
	repo "edvora.com/lms/internal/modules/order/repository"
	userRepo "edvora.com/lms/internal/modules/user/repository"
	"edvora.com/lms/pkg/apperror"
	"edvora.com/lms/pkg/cache"
	"edvora.com/lms/pkg/mailer"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service interface {
	CreateOrder(ctx context.Context, actor *entity.User, req orderDto.CreateOrderRequest) (*entity.Order, error)
	GetAllOrders(ctx context.Context) ([]entity.Order, error)
}

type service struct {
	orderRepo  repo.OrderRepository
	courseRepo courseRepo.CourseRepository
	userRepo   userRepo.UserRepository
	sessions   cache.Store
	mail       mailer.Mailer
	notifier   notification.NotificationService
}

func NewService(orderRepo repo.OrderRepository, courseRepo courseRepo.CourseRepository, userRepo userRepo.UserRepository, sessions cache.Store, mail mailer.Mailer, notifier notification.NotificationService) Service {
	return &service{
		orderRepo:  orderRepo,
		courseRepo: courseRepo,
		userRepo:   userRepo,
		sessions:   sessions,
		mail:       mail,
		notifier:   notifier,
	}
}

// CreateOrder records a purchase: the order row, the course id on the buyer's
// list, and the purchase counter on the course. The confirmation mail and the
// admin notification go out after the writes, so a dispatch failure fails the
// request while the purchase itself stays committed.
func (s *service) CreateOrder(ctx context.Context, actor *entity.User, req orderDto.CreateOrderRequest) (*entity.Order, error) {
	courseID, err := uuid.Parse(req.CourseID)
	if err != nil {
		return nil, fmt.Errorf("course not found: %w", apperror.ErrNotFound)
	}

	if actor.Owns(courseID) {
		return nil, fmt.Errorf("you have already purchased this course: %w", apperror.ErrBadRequest)
	}

	course, err := s.courseRepo.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("course not found: %w", apperror.ErrNotFound)
		}
		return nil, err
	}

	order := &entity.Order{
		UserID:      actor.ID,
		CourseID:    course.ID,
		PaymentInfo: datatypes.JSON(req.PaymentInfo),
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, err
	}

	actor.Courses = append(actor.Courses, course.ID)
	if err := s.userRepo.Update(ctx, actor); err != nil {
		return nil, err
	}
	if err := s.writeSession(ctx, actor); err != nil {
		return nil, err
	}

	course.Purchased++
	if err := s.courseRepo.Save(ctx, course); err != nil {
		return nil, err
	}

	mailData := map[string]any{
		"Name":       actor.Name,
		"CourseName": course.Name,
		"OrderID":    order.ID.String(),
		"Price":      course.Price,
	}
	if err := s.mail.Send(actor.Email, "Order Confirmation", "order-confirmation", mailData); err != nil {
		return nil, fmt.Errorf("%v: %w", err, apperror.ErrUpstream)
	}

	notif := &entity.Notification{
		UserID:  actor.ID,
		Title:   "New Order",
		Message: fmt.Sprintf("You have a new order from %s", course.Name),
	}
	if err := s.notifier.CreateNotification(ctx, notif); err != nil {
		return nil, err
	}

	return order, nil
}

func (s *service) GetAllOrders(ctx context.Context) ([]entity.Order, error) {
	return s.orderRepo.FindAll(ctx)
}

// writeSession keeps the cached session in step with the buyer's course list,
// the auth middleware reads ownership from it.
func (s *service) writeSession(ctx context.Context, user *entity.User) error {
	if s.sessions == nil {
		return nil
	}
	payload, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return s.sessions.Set(ctx, user.ID.String(), string(payload))
}
