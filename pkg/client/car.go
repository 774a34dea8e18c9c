package client

import (
	"fmt"
	"net/url"
	"strconv"

	"roadquest/pkg/model"
)

type CarClient struct {
	httpClient *HttpClient
}

func NewCarClient(baseUrl string) *CarClient {
	return &CarClient{
		httpClient: NewHttpClient(baseUrl),
	}
}

func (c *CarClient) Create(body any) (*Response, error) {
	return c.httpClient.POST("/api/v1/cars", body)
}

// List filters by owner email and availability when they are non-empty.
func (c *CarClient) List(ownerEmail, availability string, limit int, offset int64) (*Response, error) {
	q := url.Values{}
	if ownerEmail != "" {
		q.Set("email", ownerEmail)
	}
	if availability != "" {
		q.Set("availability", availability)
	}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.FormatInt(offset, 10))
	return c.httpClient.GET("/api/v1/cars?" + q.Encode())
}

func (c *CarClient) GetByID(id string) (*Response, error) {
	return c.httpClient.GET(carPath(id))
}

func (c *CarClient) Update(id string, body any) (*Response, error) {
	return c.httpClient.PATCH(carPath(id), body)
}

func (c *CarClient) Replace(id string, body any) (*Response, error) {
	return c.httpClient.PUT(carPath(id), body)
}

func (c *CarClient) Delete(id string) (*Response, error) {
	return c.httpClient.DELETE(carPath(id))
}

func (c *CarClient) BookingCount(id string) (*Response, error) {
	return c.httpClient.GET(carPath(id) + "/booking-count")
}

func carPath(id string) string {
	return "/api/v1/cars/id/" + url.PathEscape(id)
}

func (c *CarClient) DecodeCar(resp *Response) (*model.Car, error) {
	var car model.Car
	if err := decodeData(resp, &car); err != nil {
		return nil, fmt.Errorf("could not decode car: %w", err)
	}
	return &car, nil
}

func (c *CarClient) DecodeCars(resp *Response) ([]*model.Car, *Metadata, error) {
	var cars []*model.Car
	metadata, err := decodePaginated(resp, &cars)
	if err != nil {
		return nil, nil, fmt.Errorf("could not decode car page: %w", err)
	}
	return cars, metadata, nil
}

func (c *CarClient) DecodeBookingCount(resp *Response) (*model.CarBookingCount, error) {
	var count model.CarBookingCount
	if err := decodeData(resp, &count); err != nil {
		return nil, fmt.Errorf("could not decode booking count: %w", err)
	}
	return &count, nil
}
