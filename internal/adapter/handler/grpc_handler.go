package handler

import (
	"context"
	"errors"
	"math"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/PJB0911/SecKill-i/internal/core/domain"
	"github.com/PJB0911/SecKill-i/internal/core/service"
)

// The service exchanges google.protobuf.Struct messages so it needs no
// generated stubs. Field names match the HTTP JSON bodies.
const (
	FlashSaleServiceName = "seckill.v1.FlashSale"
	PurchaseMethod       = "/seckill.v1.FlashSale/Purchase"
	GetItemMethod        = "/seckill.v1.FlashSale/GetItem"
)

type FlashSaleServer interface {
	Purchase(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

func RegisterFlashSaleServer(s grpc.ServiceRegistrar, srv FlashSaleServer) {
	s.RegisterService(&flashSaleServiceDesc, srv)
}

var flashSaleServiceDesc = grpc.ServiceDesc{
	ServiceName: FlashSaleServiceName,
	HandlerType: (*FlashSaleServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Purchase", Handler: unaryHandler(PurchaseMethod, FlashSaleServer.Purchase)},
		{MethodName: "GetItem", Handler: unaryHandler(GetItemMethod, FlashSaleServer.GetItem)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "seckill/v1/flashsale.proto",
}

func unaryHandler(fullMethod string, call func(FlashSaleServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(FlashSaleServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(FlashSaleServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// FlashSaleClient calls a FlashSale server over an existing connection.
type FlashSaleClient struct {
	cc grpc.ClientConnInterface
}

func NewFlashSaleClient(cc grpc.ClientConnInterface) *FlashSaleClient {
	return &FlashSaleClient{cc: cc}
}

func (c *FlashSaleClient) Purchase(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, PurchaseMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FlashSaleClient) GetItem(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetItemMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type GRPCHandler struct {
	items  *service.ItemService
	orders *service.OrderService
}

func NewGRPCHandler(items *service.ItemService, orders *service.OrderService) *GRPCHandler {
	return &GRPCHandler{items: items, orders: orders}
}

func (h *GRPCHandler) Purchase(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	itemID, err := intField(req, "item_id")
	if err != nil {
		return nil, err
	}
	amount, err := intField(req, "amount")
	if err != nil {
		return nil, err
	}

	receipt, err := h.orders.Purchase(ctx, domain.PurchaseRequest{
		IdempotencyKey: stringField(req, "request_id"),
		UserID:         stringField(req, "user_id"),
		ItemID:         itemID,
		Amount:         amount,
	})
	if err != nil {
		return nil, mapServiceError(err)
	}

	return structpb.NewStruct(map[string]interface{}{
		"id":           receipt.ID,
		"request_id":   receipt.IdempotencyKey,
		"user_id":      receipt.UserID,
		"item_id":      receipt.ItemID,
		"amount":       receipt.Amount,
		"unit_price":   receipt.UnitPrice.String(),
		"total":        receipt.Total().String(),
		"promo_id":     receipt.PromoID,
		"purchased_at": receipt.PurchasedAt.Format(time.RFC3339Nano),
	})
}

func (h *GRPCHandler) GetItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := intField(req, "id")
	if err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, status.Error(codes.InvalidArgument, "id must be greater than 0")
	}

	view, err := h.items.BuildView(ctx, id)
	if err != nil {
		return nil, mapServiceError(err)
	}

	fields := map[string]interface{}{
		"id":           view.ID,
		"title":        view.Title,
		"description":  view.Description,
		"price":        view.Price.String(),
		"img_url":      view.ImgURL,
		"stock":        view.Stock,
		"sales":        view.Sales,
		"promo_status": int64(view.Promo.Status),
	}
	if view.HasPromo() {
		fields["promo_id"] = view.Promo.ID
		fields["promo_price"] = view.Promo.Price.String()
		fields["start_date"] = view.Promo.StartAt.Format(startDateLayout)
	}
	return structpb.NewStruct(fields)
}

func stringField(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}

// intField reads a whole number; Struct numbers travel as doubles.
func intField(s *structpb.Struct, name string) (int64, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue != math.Trunc(n.NumberValue) || math.Abs(n.NumberValue) > 1<<53 {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be an integer", name)
	}
	return int64(n.NumberValue), nil
}

// mapServiceError converts core errors to gRPC status codes
func mapServiceError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrItemNotFound):
		return status.Error(codes.NotFound, "item not found")
	case errors.Is(err, domain.ErrInsufficientStock):
		return status.Error(codes.ResourceExhausted, "sold out")
	case errors.Is(err, domain.ErrPurchasePending):
		return status.Error(codes.Aborted, "purchase pending")
	case errors.Is(err, domain.ErrTransientStore):
		return status.Error(codes.Unavailable, "store temporarily unavailable")
	default:
		return status.Errorf(codes.Internal, "internal error: %v", err)
	}
}
