package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"roadquest/pkg/model"
)

type BookingClient struct {
	httpClient *HttpClient
}

func NewBookingClient(baseUrl string) *BookingClient {
	return &BookingClient{
		httpClient: NewHttpClient(baseUrl),
	}
}

func (c *BookingClient) Create(body any) (*Response, error) {
	return c.httpClient.POST("/api/v1/bookings", body)
}

// CreateIdempotent sends key as Idempotency-Key so retries replay the first result.
func (c *BookingClient) CreateIdempotent(body any, key string) (*Response, error) {
	return c.httpClient.POSTWithHeaders("/api/v1/bookings", body, map[string]string{"Idempotency-Key": key})
}

func (c *BookingClient) ListByEmail(email string, limit int, offset int64) (*Response, error) {
	q := url.Values{}
	q.Set("email", email)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.FormatInt(offset, 10))
	return c.httpClient.GET("/api/v1/bookings?" + q.Encode())
}

// Search lists active bookings of a car. Empty times leave the window open.
func (c *BookingClient) Search(carID, startTime, endTime string) (*Response, error) {
	q := url.Values{}
	q.Set("car_id", carID)
	if startTime != "" {
		q.Set("start_time", startTime)
	}
	if endTime != "" {
		q.Set("end_time", endTime)
	}
	return c.httpClient.GET("/api/v1/bookings/search?" + q.Encode())
}

func (c *BookingClient) GetByID(id string) (*Response, error) {
	return c.httpClient.GET(bookingPath(id))
}

func (c *BookingClient) Update(id string, body any) (*Response, error) {
	return c.httpClient.PATCH(bookingPath(id), body)
}

func (c *BookingClient) Cancel(id string) (*Response, error) {
	return c.httpClient.DELETE(bookingPath(id))
}

func (c *BookingClient) CreateRaw(rawBody []byte) (*Response, error) {
	return c.httpClient.POSTRaw("/api/v1/bookings", rawBody)
}

func (c *BookingClient) UpdateRaw(id string, rawBody []byte) (*Response, error) {
	return c.httpClient.PATCHRaw(bookingPath(id), rawBody)
}

func bookingPath(id string) string {
	return "/api/v1/bookings/id/" + url.PathEscape(id)
}

func (c *BookingClient) DecodeBooking(resp *Response) (*model.Booking, error) {
	var booking model.Booking
	if err := decodeData(resp, &booking); err != nil {
		return nil, fmt.Errorf("could not decode booking: %w", err)
	}
	return &booking, nil
}

func (c *BookingClient) DecodeBookings(resp *Response) ([]*model.Booking, error) {
	var bookings []*model.Booking
	if err := decodeData(resp, &bookings); err != nil {
		return nil, fmt.Errorf("could not decode booking list: %w", err)
	}
	return bookings, nil
}

func (c *BookingClient) DecodePaginatedBookings(resp *Response) ([]*model.Booking, *Metadata, error) {
	var bookings []*model.Booking
	metadata, err := decodePaginated(resp, &bookings)
	if err != nil {
		return nil, nil, fmt.Errorf("could not decode booking page: %w", err)
	}
	return bookings, metadata, nil
}

func decodeData(resp *Response, target any) error {
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &wrapper); err != nil {
		return fmt.Errorf("%s: %w", resp.ToString(), err)
	}
	if err := json.Unmarshal(wrapper.Data, target); err != nil {
		return fmt.Errorf("%s: %w", resp.ToString(), err)
	}
	return nil
}

func decodePaginated(resp *Response, target any) (*Metadata, error) {
	var wrapper struct {
		Data json.RawMessage `json:"data"`
		Metadata
	}
	if err := json.Unmarshal(resp.Body, &wrapper); err != nil {
		return nil, fmt.Errorf("%s: %w", resp.ToString(), err)
	}
	if err := json.Unmarshal(wrapper.Data, target); err != nil {
		return nil, fmt.Errorf("%s: %w", resp.ToString(), err)
	}
	return &wrapper.Metadata, nil
}
