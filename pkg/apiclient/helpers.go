package apiclient

// fetch sends a JSON request and decodes the response into a new T.
func fetch[T any](c *Client, method, path string, body any) (*T, error) {
	var out T
	if err := c.call(method, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// fetchList decodes an array response. A null or empty body is an empty
// slice, never nil.
func fetchList[T any](c *Client, method, path string, body any) ([]T, error) {
	var out []T
	if err := c.call(method, path, body, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}
